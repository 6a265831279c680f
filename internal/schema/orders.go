// Package schema defines the canonical record layout that all cleaned order
// data is mapped into before persistence, plus the derived statistics shape.
package schema

import "time"

// Unknown is the fill value for absent/null text fields.
const Unknown = "Unknown"

// Canonical field names. Raw rows use these keys after normalization;
// ListPrice and CostPrice are pipeline inputs only and are not persisted.
const (
	FieldOrderID     = "order_id"
	FieldOrderDate   = "order_date"
	FieldShipMode    = "ship_mode"
	FieldSegment     = "segment"
	FieldCountry     = "country"
	FieldCity        = "city"
	FieldState       = "state"
	FieldPostalCode  = "postal_code"
	FieldRegion      = "region"
	FieldCategory    = "category"
	FieldSubCategory = "sub_category"
	FieldProductID   = "product_id"
	FieldQuantity    = "quantity"
	FieldDiscount    = "discount"
	FieldSalePrice   = "sale_price"
	FieldProfit      = "profit"
	FieldListPrice   = "list_price"
	FieldCostPrice   = "cost_price"
)

// Columns is the persisted column set of the orders table, in insert order.
var Columns = []string{
	FieldOrderID, FieldOrderDate, FieldShipMode, FieldSegment,
	FieldCountry, FieldCity, FieldState, FieldPostalCode, FieldRegion,
	FieldCategory, FieldSubCategory, FieldProductID,
	FieldQuantity, FieldDiscount, FieldSalePrice, FieldProfit,
}

// TextColumns lists the fields that default to Unknown when absent.
var TextColumns = []string{
	FieldShipMode, FieldSegment, FieldCountry, FieldCity, FieldState,
	FieldPostalCode, FieldRegion, FieldCategory, FieldSubCategory,
	FieldProductID,
}

// InputFields names raw columns that feed derivation but are never persisted.
var InputFields = []string{FieldListPrice, FieldCostPrice}

// Aliases maps folded source header names to canonical field names where the
// folded form does not already equal the canonical name. Folding (lowercase,
// accent strip, space/punctuation collapse) happens before lookup, so e.g.
// "Order Id", "order id", and "ORDER_ID" all resolve without an entry here.
var Aliases = map[string]string{
	"discount_percent": FieldDiscount,
}

// CleanedRecord is the canonical order row. A CleanedRecord is immutable once
// it leaves the clean stage; a nil OrderDate means the source date was absent
// or unparseable.
type CleanedRecord struct {
	OrderID     int64      `db:"order_id"`
	OrderDate   *time.Time `db:"order_date"`
	ShipMode    string     `db:"ship_mode"`
	Segment     string     `db:"segment"`
	Country     string     `db:"country"`
	City        string     `db:"city"`
	State       string     `db:"state"`
	PostalCode  string     `db:"postal_code"`
	Region      string     `db:"region"`
	Category    string     `db:"category"`
	SubCategory string     `db:"sub_category"`
	ProductID   string     `db:"product_id"`
	Quantity    int64      `db:"quantity"`
	Discount    float64    `db:"discount"`
	SalePrice   float64    `db:"sale_price"`
	Profit      float64    `db:"profit"`
}

// Row returns the record's values aligned with Columns.
func (r CleanedRecord) Row() []any {
	return []any{
		r.OrderID, r.OrderDate, r.ShipMode, r.Segment,
		r.Country, r.City, r.State, r.PostalCode, r.Region,
		r.Category, r.SubCategory, r.ProductID,
		r.Quantity, r.Discount, r.SalePrice, r.Profit,
	}
}

// StatColumns is the insertable column set of the statistics table; stat_id
// and log_date are populated by the database.
var StatColumns = []string{
	"product_id", "category", "sub_category",
	"total_revenue", "total_profit", "total_quantity",
	"order_count", "profit_margin_pct",
}

// ProductStat is one per-product aggregate row. ProfitMarginPct is nil when
// total revenue is zero (margin undefined), which persists as NULL.
type ProductStat struct {
	ProductID       string   `db:"product_id"`
	Category        string   `db:"category"`
	SubCategory     string   `db:"sub_category"`
	TotalRevenue    float64  `db:"total_revenue"`
	TotalProfit     float64  `db:"total_profit"`
	TotalQuantity   int64    `db:"total_quantity"`
	OrderCount      int64    `db:"order_count"`
	ProfitMarginPct *float64 `db:"profit_margin_pct"`
}

// DiscountAdjustment maps a region name to a signed delta added to the
// discount of every persisted row in that region.
type DiscountAdjustment map[string]float64
