package transform

import (
	"testing"
	"time"

	"ordersetl/internal/schema"
)

func dated(id int64, day string) schema.CleanedRecord {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return schema.CleanedRecord{OrderID: id, OrderDate: &d}
}

func TestSelectSinceStrictBoundary(t *testing.T) {
	wm := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	in := []schema.CleanedRecord{
		dated(1, "2023-06-14"), // before: out
		dated(2, "2023-06-15"), // equal: out
		dated(3, "2023-06-16"), // after: in
		{OrderID: 4},           // nil date: out
	}
	got := SelectSince(in, &wm)
	if len(got) != 1 || got[0].OrderID != 3 {
		t.Fatalf("got %#v, want only order 3", got)
	}
}

func TestSelectSinceNilWatermarkPassesAll(t *testing.T) {
	in := []schema.CleanedRecord{
		dated(1, "2023-06-14"),
		{OrderID: 2}, // nil date survives a full load
	}
	got := SelectSince(in, nil)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
}

func TestSelectSinceEmptyInput(t *testing.T) {
	wm := time.Now()
	if got := SelectSince(nil, &wm); len(got) != 0 {
		t.Fatalf("got %#v, want empty", got)
	}
}
