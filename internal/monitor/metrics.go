// Package monitor keeps in-process counters and latency windows for a run:
// gateway submissions, journal writes and control API requests.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks one process's performance.
type Metrics struct {
	// Latency histograms
	SubmitLatency  *LatencyHistogram
	JournalLatency *LatencyHistogram
	APILatency     *LatencyHistogram

	// Counters
	ordersSubmitted uint64
	ordersRejected  uint64
	transitions     uint64
	apiRequests     uint64
	apiErrors       uint64

	started time.Time
}

// LatencyHistogram tracks latency samples with sliding window.
// Stats are computed lazily and cached until the next sample.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// New creates a metrics instance.
func New() *Metrics {
	return &Metrics{
		SubmitLatency:  NewLatencyHistogram(1000),
		JournalLatency: NewLatencyHistogram(1000),
		APILatency:     NewLatencyHistogram(1000),
		started:        time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// Shift window: remove oldest
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// ObserveSubmit counts one gateway submission and its latency.
func (m *Metrics) ObserveSubmit(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SubmitLatency.RecordDuration(d)
	if err != nil {
		atomic.AddUint64(&m.ordersRejected, 1)
		return
	}
	atomic.AddUint64(&m.ordersSubmitted, 1)
}

// ObserveJournal records one journal write latency.
func (m *Metrics) ObserveJournal(d time.Duration) {
	if m == nil {
		return
	}
	m.JournalLatency.RecordDuration(d)
}

// IncrementTransitions counts one swing transition.
func (m *Metrics) IncrementTransitions() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.transitions, 1)
}

// ObserveAPI counts one control API request.
func (m *Metrics) ObserveAPI(d time.Duration, status int) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.apiRequests, 1)
	m.APILatency.RecordDuration(d)
	if status >= 400 {
		atomic.AddUint64(&m.apiErrors, 1)
	}
}

// Snapshot is a point-in-time view of Metrics.
type Snapshot struct {
	SubmitLatency   LatencyStats `json:"submit_latency"`
	JournalLatency  LatencyStats `json:"journal_latency"`
	APILatency      LatencyStats `json:"api_latency"`
	OrdersSubmitted uint64       `json:"orders_submitted"`
	OrdersRejected  uint64       `json:"orders_rejected"`
	Transitions     uint64       `json:"swing_transitions"`
	APIRequests     uint64       `json:"api_requests"`
	APIErrors       uint64       `json:"api_errors"`
	GoroutineCount  int          `json:"goroutine_count"`
	HeapAlloc       uint64       `json:"heap_alloc_bytes"`
	Uptime          string       `json:"uptime"`
	Timestamp       time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	now := time.Now()
	return Snapshot{
		SubmitLatency:   m.SubmitLatency.Stats(),
		JournalLatency:  m.JournalLatency.Stats(),
		APILatency:      m.APILatency.Stats(),
		OrdersSubmitted: atomic.LoadUint64(&m.ordersSubmitted),
		OrdersRejected:  atomic.LoadUint64(&m.ordersRejected),
		Transitions:     atomic.LoadUint64(&m.transitions),
		APIRequests:     atomic.LoadUint64(&m.apiRequests),
		APIErrors:       atomic.LoadUint64(&m.apiErrors),
		GoroutineCount:  runtime.NumGoroutine(),
		HeapAlloc:       memStats.HeapAlloc,
		Uptime:          now.Sub(m.started).Truncate(time.Second).String(),
		Timestamp:       now,
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
