package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	durations  []durationCall
	flushCount int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type durationCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveDuration(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations = append(f.durations, durationCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordStepSuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordStep("jobA", "ingest", nil, 2*time.Second)
	RecordStep("jobB", "stats", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.durations) != 2 {
		t.Fatalf("calls: counters=%d durations=%d, want 2/2", len(fb.counters), len(fb.durations))
	}

	c0 := fb.counters[0]
	if c0.name != "orders_step_total" || c0.delta != 1 {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if c0.labels["job"] != "jobA" || c0.labels["step"] != "ingest" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0] labels = %v", c0.labels)
	}

	d0 := fb.durations[0]
	if d0.name != "orders_step_duration_seconds" {
		t.Fatalf("duration[0].name = %q", d0.name)
	}
	if d0.value < 2.0-0.001 || d0.value > 2.0+0.001 {
		t.Fatalf("duration[0].value = %v, want ~2.0", d0.value)
	}

	c1 := fb.counters[1]
	if c1.labels["status"] != "failure" {
		t.Fatalf("counter[1].labels[status] = %q", c1.labels["status"])
	}
	if d1 := fb.durations[1]; d1.value < 1.5-0.001 || d1.value > 1.5+0.001 {
		t.Fatalf("duration[1].value = %v, want ~1.5", d1.value)
	}
}

func TestRecordRowAndBatches(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordRow("jobX", "processed", 3)
	RecordRow("jobX", "processed", 0) // ignored
	RecordRow("jobX", "rejected", -1) // ignored
	RecordRow("jobY", "inserted", 5)
	RecordBatches("jobZ", 2)

	if len(fb.counters) != 3 {
		t.Fatalf("counter calls = %d, want 3", len(fb.counters))
	}

	c0 := fb.counters[0]
	if c0.name != "orders_records_total" || c0.delta != 3 {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if c0.labels["job"] != "jobX" || c0.labels["kind"] != "processed" {
		t.Fatalf("counter[0] labels = %v", c0.labels)
	}

	c2 := fb.counters[2]
	if c2.name != "orders_batches_total" || c2.delta != 2 || c2.labels["job"] != "jobZ" {
		t.Fatalf("counter[2] = %#v", c2)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)

	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount = %d, want 1", fb.flushCount)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) must keep the existing backend")
	}
}
