package monitor

import (
	"errors"
	"testing"
	"time"
)

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Record(float64(i))
	}
	s := h.Stats()
	if s.Count != 100 || s.Min != 1 || s.Max != 100 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.Avg != 50.5 {
		t.Fatalf("expected avg 50.5, got %v", s.Avg)
	}
	if s.P50 != 51 || s.P95 != 96 || s.P99 != 100 {
		t.Fatalf("unexpected percentiles: %+v", s)
	}
}

func TestLatencyHistogramWindow(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{10, 20, 30, 40} {
		h.Record(v)
	}
	s := h.Stats()
	if s.Count != 3 || s.Min != 20 {
		t.Fatalf("oldest sample should be evicted: %+v", s)
	}
	h.Record(1)
	if got := h.Stats().Min; got != 1 {
		t.Fatalf("cached stats not refreshed, min=%v", got)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.ObserveSubmit(2*time.Millisecond, nil)
	m.ObserveSubmit(3*time.Millisecond, nil)
	m.ObserveSubmit(time.Millisecond, errors.New("rejected"))
	m.IncrementTransitions()
	m.ObserveAPI(time.Millisecond, 200)
	m.ObserveAPI(time.Millisecond, 401)

	s := m.GetSnapshot()
	if s.OrdersSubmitted != 2 || s.OrdersRejected != 1 {
		t.Fatalf("orders submitted=%d rejected=%d", s.OrdersSubmitted, s.OrdersRejected)
	}
	if s.SubmitLatency.Count != 3 {
		t.Fatalf("expected 3 submit samples, got %d", s.SubmitLatency.Count)
	}
	if s.Transitions != 1 || s.APIRequests != 2 || s.APIErrors != 1 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSubmit(time.Millisecond, nil)
	m.ObserveJournal(time.Millisecond)
	m.IncrementTransitions()
	m.ObserveAPI(time.Millisecond, 500)
}
