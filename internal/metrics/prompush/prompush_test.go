package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"ordersetl/internal/metrics"
)

// readCounterValue reads the current value of a Counter for assertions.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatal("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatal("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatal("metric did not contain Summary value")
	}
	sum := m.GetSummary()
	return sum.GetSampleCount(), sum.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{
			name:       "missing gateway URL returns error",
			jobName:    "orders-job",
			gatewayURL: "",
			wantErr:    true,
		},
		{
			name:        "empty job name uses default",
			jobName:     "",
			gatewayURL:  "http://pushgateway:9091",
			wantJobName: "orders",
		},
		{
			name:        "explicit job name is preserved",
			jobName:     "my-custom-job",
			gatewayURL:  "http://pushgateway:9091",
			wantJobName: "my-custom-job",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.gatewayURL != tt.gatewayURL {
				t.Fatalf("gatewayURL = %q, want %q", b.gatewayURL, tt.gatewayURL)
			}

			// label cardinality: these calls must not panic
			b.stepCounter.WithLabelValues("ingest", "ok").Add(1)
			b.stepDuration.WithLabelValues("stats", "error").Observe(0.5)
			b.recordCounter.WithLabelValues("processed").Add(1)
			b.batchCounter.Add(1)
		})
	}
}

func TestIncCounterRouting(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("orders", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("orders_step_total", 3, metrics.Labels{"step": "ingest", "status": "success"})
	b.IncCounter("orders_records_total", 5, metrics.Labels{"kind": "inserted"})
	b.IncCounter("orders_batches_total", 2, metrics.Labels{})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("ingest", "success")); got != 3 {
		t.Errorf("stepCounter = %v, want 3", got)
	}
	if got := readCounterValue(t, b.recordCounter.WithLabelValues("inserted")); got != 5 {
		t.Errorf("recordCounter = %v, want 5", got)
	}
	if got := readCounterValue(t, b.batchCounter); got != 2 {
		t.Errorf("batchCounter = %v, want 2", got)
	}
}

func TestIncCounterNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{} // zero-value backend with nil collectors

	// all safe no-ops
	b.IncCounter("orders_step_total", 1, metrics.Labels{"step": "s", "status": "ok"})
	b.IncCounter("orders_records_total", 1, metrics.Labels{"kind": "processed"})
	b.IncCounter("orders_batches_total", 1, metrics.Labels{})
	b.ObserveDuration("orders_step_duration_seconds", 1, metrics.Labels{})
}

func TestObserveDuration(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("orders", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.ObserveDuration("orders_step_duration_seconds", 1.5, metrics.Labels{"step": "ingest", "status": "success"})
	b.ObserveDuration("other_metric", 2.0, metrics.Labels{"step": "ingest", "status": "success"})

	count, sum := readSummaryCountSum(t, b.stepDuration, "ingest", "success")
	if count != 1 {
		t.Errorf("sample count = %d, want 1", count)
	}
	if sum != 1.5 {
		t.Errorf("sample sum = %v, want 1.5", sum)
	}
}

// TestFlush verifies that Flush pushes the registry to the configured
// Pushgateway URL.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method  string
		path    string
		bodyLen int
	}

	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("orders-job", server.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter("orders_step_total", 1, metrics.Labels{"step": "ingest", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	select {
	case got := <-reqCh:
		if got.method == "" || got.path == "" || got.bodyLen == 0 {
			t.Fatalf("malformed push request: %+v", got)
		}
	default:
		t.Fatal("Flush did not hit the Pushgateway")
	}
}
