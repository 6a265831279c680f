package storage

import (
	"errors"
	"testing"

	"ordersetl/internal/schema"
)

func mkRecs(n int) []schema.CleanedRecord {
	out := make([]schema.CleanedRecord, n)
	for i := range out {
		out[i] = schema.CleanedRecord{OrderID: int64(i + 1)}
	}
	return out
}

func TestLoadChunksBatching(t *testing.T) {
	var sizes []int
	total, batches, err := LoadChunks(mkRecs(25), 10, func(batch []schema.CleanedRecord) (int64, error) {
		sizes = append(sizes, len(batch))
		return int64(len(batch)), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 25 {
		t.Errorf("total = %d, want 25", total)
	}
	if batches != 3 {
		t.Errorf("batches = %d, want 3", batches)
	}
	want := []int{10, 10, 5}
	if len(sizes) != len(want) {
		t.Fatalf("batches = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestLoadChunksStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	total, batches, err := LoadChunks(mkRecs(30), 10, func(batch []schema.CleanedRecord) (int64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return int64(len(batch)), nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10 (only first batch)", total)
	}
	if batches != 1 {
		t.Errorf("batches = %d, want 1 (failed chunk not counted)", batches)
	}
}

func TestLoadChunksEmptyInput(t *testing.T) {
	total, batches, err := LoadChunks(nil, 10, func(batch []schema.CleanedRecord) (int64, error) {
		t.Fatal("fn called for empty input")
		return 0, nil
	})
	if err != nil || total != 0 || batches != 0 {
		t.Fatalf("got total=%d batches=%d err=%v, want 0, 0, nil", total, batches, err)
	}
}

func TestLoadChunksRejectsBadArgs(t *testing.T) {
	if _, _, err := LoadChunks(mkRecs(1), 0, func([]schema.CleanedRecord) (int64, error) { return 0, nil }); err == nil {
		t.Error("size=0 accepted")
	}
	if _, _, err := LoadChunks(mkRecs(1), 10, nil); err == nil {
		t.Error("nil fn accepted")
	}
}
