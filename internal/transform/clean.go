package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"ordersetl/internal/schema"
	"ordersetl/pkg/records"
)

// Rejection describes a row excluded by the clean stage.
type Rejection struct {
	Raw    records.Record
	Reason string
}

// DateLayouts are tried in order when parsing order_date.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
}

// Cleaner coerces normalized records into the canonical CleanedRecord shape.
//
// Field policy:
//   - order_id: must parse as an integer; otherwise the row is excluded and
//     reported via Reject. This is the only hard-reject condition.
//   - order_date: unparseable or missing -> nil, row retained.
//   - quantity, discount: unparseable or missing -> 0.
//   - text fields: missing/nil/empty -> "Unknown".
//   - sale_price, profit: taken as left by the derive stage (0 if defaulted).
type Cleaner struct {
	Reject func(Rejection) // optional sink for dropped rows
}

func (c Cleaner) Apply(in []records.Record) []schema.CleanedRecord {
	out := make([]schema.CleanedRecord, 0, len(in))
	for _, r := range in {
		id, ok := parseOrderID(r[schema.FieldOrderID])
		if !ok {
			if c.Reject != nil {
				c.Reject(Rejection{Raw: r, Reason: "order_id missing or not an integer"})
			}
			continue
		}

		rec := schema.CleanedRecord{
			OrderID:     id,
			OrderDate:   parseDate(r[schema.FieldOrderDate]),
			ShipMode:    textOrUnknown(r[schema.FieldShipMode]),
			Segment:     textOrUnknown(r[schema.FieldSegment]),
			Country:     textOrUnknown(r[schema.FieldCountry]),
			City:        textOrUnknown(r[schema.FieldCity]),
			State:       textOrUnknown(r[schema.FieldState]),
			PostalCode:  textOrUnknown(r[schema.FieldPostalCode]),
			Region:      textOrUnknown(r[schema.FieldRegion]),
			Category:    textOrUnknown(r[schema.FieldCategory]),
			SubCategory: textOrUnknown(r[schema.FieldSubCategory]),
			ProductID:   textOrUnknown(r[schema.FieldProductID]),
			Quantity:    parseQuantity(r[schema.FieldQuantity]),
		}
		rec.Discount, _ = numeric(r[schema.FieldDiscount])
		rec.SalePrice, _ = numeric(r[schema.FieldSalePrice])
		rec.Profit, _ = numeric(r[schema.FieldProfit])

		out = append(out, rec)
	}
	return out
}

// parseOrderID accepts integers, integral floats ("5.0"), and digit strings.
func parseOrderID(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == math.Trunc(t) {
			return int64(t), true
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseQuantity(v any) int64 {
	f, ok := numeric(v)
	if !ok || f < 0 {
		return 0
	}
	return int64(f)
}

func parseDate(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range DateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return &d
			}
		}
		return nil
	default:
		return nil
	}
}

func textOrUnknown(v any) string {
	switch t := v.(type) {
	case nil:
		return schema.Unknown
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return schema.Unknown
		}
		return s
	case float64:
		// Numeric-looking text columns (postal codes) keep integral form.
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return schema.Unknown
	}
}
