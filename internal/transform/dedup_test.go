package transform

import (
	"reflect"
	"testing"

	"ordersetl/internal/schema"
)

func rec(id int64, region string) schema.CleanedRecord {
	return schema.CleanedRecord{OrderID: id, Region: region}
}

func TestDedupKeepsLastOccurrence(t *testing.T) {
	in := []schema.CleanedRecord{
		rec(1, "East"),
		rec(2, "West"),
		rec(1, "South"),
	}
	got, res := DedupByOrderID(in)
	want := []schema.CleanedRecord{
		rec(2, "West"),
		rec(1, "South"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
	if res.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", res.Dropped)
	}
	if res.Conflicts != 1 {
		t.Errorf("Conflicts = %d, want 1", res.Conflicts)
	}
}

func TestDedupIdenticalRowsAreNotConflicts(t *testing.T) {
	in := []schema.CleanedRecord{
		rec(7, "East"),
		rec(7, "East"),
	}
	got, res := DedupByOrderID(in)
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if res.Dropped != 1 || res.Conflicts != 0 {
		t.Errorf("result = %+v, want Dropped=1 Conflicts=0", res)
	}
}

func TestDedupNoDuplicatesPassThrough(t *testing.T) {
	in := []schema.CleanedRecord{rec(1, "A"), rec(2, "B"), rec(3, "C")}
	got, res := DedupByOrderID(in)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("got %#v want input unchanged", got)
	}
	if res.Dropped != 0 || res.Conflicts != 0 {
		t.Errorf("result = %+v, want zero", res)
	}
}

func TestDedupEmptyBatch(t *testing.T) {
	got, res := DedupByOrderID(nil)
	if len(got) != 0 || res.Dropped != 0 {
		t.Fatalf("got %#v %+v, want empty", got, res)
	}
}
