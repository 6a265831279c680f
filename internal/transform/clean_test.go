package transform

import (
	"testing"
	"time"

	"ordersetl/internal/schema"
	"ordersetl/pkg/records"
)

func TestCleanerRejectsBadOrderID(t *testing.T) {
	cases := []struct {
		name string
		id   any
	}{
		{"missing", nil},
		{"empty string", ""},
		{"non-numeric", "abc"},
		{"fractional float", 5.5},
		{"fractional string", "5.5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var rejects []Rejection
			cl := Cleaner{Reject: func(r Rejection) { rejects = append(rejects, r) }}

			out := cl.Apply([]records.Record{{"order_id": c.id, "region": "West"}})
			if len(out) != 0 {
				t.Fatalf("row survived: %#v", out)
			}
			if len(rejects) != 1 {
				t.Fatalf("rejects = %d, want 1", len(rejects))
			}
		})
	}
}

func TestCleanerAcceptsOrderIDShapes(t *testing.T) {
	cases := []struct {
		name string
		id   any
		want int64
	}{
		{"int", 42, 42},
		{"int64", int64(42), 42},
		{"integral float", 42.0, 42},
		{"digit string", "42", 42},
		{"integral float string", "42.0", 42},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Cleaner{}.Apply([]records.Record{{"order_id": c.id}})
			if len(out) != 1 {
				t.Fatalf("row dropped")
			}
			if out[0].OrderID != c.want {
				t.Errorf("OrderID = %d, want %d", out[0].OrderID, c.want)
			}
		})
	}
}

func TestCleanerTextDefaultsToUnknown(t *testing.T) {
	out := Cleaner{}.Apply([]records.Record{{
		"order_id": "1",
		"region":   "  ",
		"city":     nil,
		"segment":  "Consumer",
	}})
	r := out[0]
	if r.Region != schema.Unknown {
		t.Errorf("Region = %q, want %q", r.Region, schema.Unknown)
	}
	if r.City != schema.Unknown || r.Country != schema.Unknown {
		t.Errorf("missing text fields not defaulted: %+v", r)
	}
	if r.Segment != "Consumer" {
		t.Errorf("Segment = %q, want Consumer", r.Segment)
	}
}

func TestCleanerNumericTextValues(t *testing.T) {
	out := Cleaner{}.Apply([]records.Record{{
		"order_id":    "1",
		"postal_code": 90210.0,
	}})
	if got := out[0].PostalCode; got != "90210" {
		t.Errorf("PostalCode = %q, want 90210", got)
	}
}

func TestCleanerQuantityAndDiscount(t *testing.T) {
	cases := []struct {
		name     string
		qty      any
		wantQty  int64
		disc     any
		wantDisc float64
	}{
		{"plain", "3", 3, "12.5", 12.5},
		{"negative quantity clamps", "-2", 0, "0", 0},
		{"unparseable", "many", 0, "lots", 0},
		{"missing", nil, 0, nil, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Cleaner{}.Apply([]records.Record{{
				"order_id": "1",
				"quantity": c.qty,
				"discount": c.disc,
			}})
			if out[0].Quantity != c.wantQty {
				t.Errorf("Quantity = %d, want %d", out[0].Quantity, c.wantQty)
			}
			if out[0].Discount != c.wantDisc {
				t.Errorf("Discount = %v, want %v", out[0].Discount, c.wantDisc)
			}
		})
	}
}

func TestCleanerDates(t *testing.T) {
	want := time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   any
		want *time.Time
	}{
		{"iso", "2023-07-14", &want},
		{"us slash", "07/14/2023", &want},
		{"garbage", "yesterday-ish", nil},
		{"empty", "", nil},
		{"missing", nil, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Cleaner{}.Apply([]records.Record{{
				"order_id":   "1",
				"order_date": c.in,
			}})
			got := out[0].OrderDate
			switch {
			case c.want == nil && got != nil:
				t.Errorf("OrderDate = %v, want nil", got)
			case c.want != nil && (got == nil || !got.Equal(*c.want)):
				t.Errorf("OrderDate = %v, want %v", got, c.want)
			}
		})
	}
}
