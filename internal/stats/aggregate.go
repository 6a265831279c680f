// Package stats implements the per-product aggregation over the persisted
// order set. The aggregation is a single streaming pass: callers feed records
// one at a time and memory stays proportional to the number of distinct
// groups (plus the distinct order-id sets needed for order_count).
package stats

import (
	"math"
	"sort"

	"ordersetl/internal/schema"
)

// groupKey identifies one statistics group.
type groupKey struct {
	ProductID   string
	Category    string
	SubCategory string
}

type accumulator struct {
	revenue  float64
	profit   float64
	quantity int64
	orders   map[int64]struct{}
}

// Aggregator reduces order records into per-product statistics:
//
//	total_revenue     = sum(sale_price * quantity)
//	total_profit      = sum(profit)
//	total_quantity    = sum(quantity)
//	order_count       = count(distinct order_id)
//	profit_margin_pct = round2(total_profit / total_revenue * 100)
//
// The margin is nil (undefined) for groups whose total revenue is zero;
// division by zero is never performed.
type Aggregator struct {
	groups map[groupKey]*accumulator
}

func NewAggregator() *Aggregator {
	return &Aggregator{groups: make(map[groupKey]*accumulator)}
}

// Add folds one record into its group.
func (a *Aggregator) Add(r schema.CleanedRecord) {
	key := groupKey{ProductID: r.ProductID, Category: r.Category, SubCategory: r.SubCategory}
	acc := a.groups[key]
	if acc == nil {
		acc = &accumulator{orders: make(map[int64]struct{})}
		a.groups[key] = acc
	}
	acc.revenue += r.SalePrice * float64(r.Quantity)
	acc.profit += r.Profit
	acc.quantity += r.Quantity
	acc.orders[r.OrderID] = struct{}{}
}

// Results returns one ProductStat per group, sorted by (product_id, category,
// sub_category) so output order is deterministic.
func (a *Aggregator) Results() []schema.ProductStat {
	out := make([]schema.ProductStat, 0, len(a.groups))
	for key, acc := range a.groups {
		stat := schema.ProductStat{
			ProductID:     key.ProductID,
			Category:      key.Category,
			SubCategory:   key.SubCategory,
			TotalRevenue:  round2(acc.revenue),
			TotalProfit:   round2(acc.profit),
			TotalQuantity: acc.quantity,
			OrderCount:    int64(len(acc.orders)),
		}
		if acc.revenue != 0 {
			pct := round2(acc.profit / acc.revenue * 100)
			stat.ProfitMarginPct = &pct
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].SubCategory < out[j].SubCategory
	})
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
