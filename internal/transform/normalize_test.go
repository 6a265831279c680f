package transform

import (
	"reflect"
	"testing"

	"ordersetl/pkg/records"
)

func TestFoldFieldName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Order Id", "order_id"},
		{"ORDER-ID", "order_id"},
		{"  order id  ", "order_id"},
		{"order__id", "order_id"},
		{"Ship.Mode", "ship_mode"},
		{"Sub-Category", "sub_category"},
		{"Région", "region"},
		{"Discount Percent", "discount_percent"},
		{"postal code ", "postal_code"},
		{"", ""},
		{"--", ""},
	}
	for _, c := range cases {
		if got := FoldFieldName(c.in); got != c.want {
			t.Errorf("FoldFieldName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeApply(t *testing.T) {
	n := NewNormalize()
	in := []records.Record{
		{
			"Order Id":         "1",
			"Ship Mode":        "Second Class",
			"Discount Percent": "5",
			"List Price":       "100",
			"Mystery Column":   "dropped",
		},
	}
	got := n.Apply(in)
	want := []records.Record{
		{
			"order_id":   "1",
			"ship_mode":  "Second Class",
			"discount":   "5",
			"list_price": "100",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	n := NewNormalize()
	in := []records.Record{{"Order Id": "7"}}
	n.Apply(in)
	if _, ok := in[0]["order_id"]; ok {
		t.Fatalf("input record was mutated: %#v", in[0])
	}
}
