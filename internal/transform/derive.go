package transform

import (
	"strconv"
	"strings"

	"ordersetl/internal/schema"
	"ordersetl/pkg/records"
)

// Derive computes sale_price and profit:
//
//	sale_price = round2(list_price * (1 - discount/100))
//	profit     = round2((sale_price - cost_price) * quantity)
//
// Rounding is half away from zero to 2 decimals. A missing discount counts
// as 0. Quantity is coerced the same way Cleaner persists it, truncated to a
// whole number with negatives and unparseable values as 0, so profit always
// agrees with the stored quantity. A missing list_price or cost_price means the
// corresponding field cannot be derived, in which case any value already in
// the source is kept, or 0 is defaulted and Incomplete is called.
//
// Derive is idempotent: re-applying it to an already-derived record computes
// the same values from the same inputs.
type Derive struct {
	// Incomplete, when set, receives one call per field that had to be
	// defaulted to 0 because its inputs were missing.
	Incomplete func(field string, rec records.Record)
}

func (d Derive) Apply(in []records.Record) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		m := r.Clone()

		listPrice, hasList := numeric(m[schema.FieldListPrice])
		discount, _ := numeric(m[schema.FieldDiscount])

		var salePrice float64
		var hasSale bool
		switch {
		case hasList:
			salePrice = round2(listPrice * (1 - discount/100))
			m[schema.FieldSalePrice] = salePrice
			hasSale = true
		default:
			salePrice, hasSale = numeric(m[schema.FieldSalePrice])
			if !hasSale {
				m[schema.FieldSalePrice] = float64(0)
				d.incomplete(schema.FieldSalePrice, m)
			}
		}

		costPrice, hasCost := numeric(m[schema.FieldCostPrice])
		quantity := parseQuantity(m[schema.FieldQuantity])
		switch {
		case hasCost && hasSale:
			m[schema.FieldProfit] = round2((salePrice - costPrice) * float64(quantity))
		default:
			if _, ok := numeric(m[schema.FieldProfit]); !ok {
				m[schema.FieldProfit] = float64(0)
				d.incomplete(schema.FieldProfit, m)
			}
		}

		out = append(out, m)
	}
	return out
}

func (d Derive) incomplete(field string, rec records.Record) {
	if d.Incomplete != nil {
		d.Incomplete(field, rec)
	}
}

// numeric extracts a float64 from the scalar shapes a record value can take
// after parsing. Empty strings and nil report false.
func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
