package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects counters for retrieval, decay and lineage operations.
// Degraded-capability conditions (index fallback scans) surface here rather
// than as errors to the caller.
type Metrics struct {
	retrievalTotal    atomic.Int64
	retrievalPartial  atomic.Int64
	fallbackScans     atomic.Int64
	decayPasses       atomic.Int64
	decaySkipped      atomic.Int64
	itemsEvicted      atomic.Int64
	indexRebuilds     atomic.Int64
	tracesSealed      atomic.Int64
	tracesQuarantined atomic.Int64
	tracesAbandoned   atomic.Int64

	mu           sync.Mutex
	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRetrieval records a retrieval request. partial marks a best-effort
// result returned after a timeout.
func (m *Metrics) RecordRetrieval(partial bool) {
	m.retrievalTotal.Add(1)
	if partial {
		m.retrievalPartial.Add(1)
	}
}

// RecordFallbackScan records a brute-force scan taken because the vector
// index was unavailable.
func (m *Metrics) RecordFallbackScan() {
	m.fallbackScans.Add(1)
}

// RecordDecayPass records a completed decay pass and its eviction count.
func (m *Metrics) RecordDecayPass(evicted int) {
	m.decayPasses.Add(1)
	m.itemsEvicted.Add(int64(evicted))
}

// RecordDecaySkipped records a decay tick skipped because the previous pass
// was still running.
func (m *Metrics) RecordDecaySkipped() {
	m.decaySkipped.Add(1)
}

// RecordIndexRebuild records an index rebuild.
func (m *Metrics) RecordIndexRebuild() {
	m.indexRebuilds.Add(1)
}

// RecordTraceSealed records a successfully sealed trace.
func (m *Metrics) RecordTraceSealed() {
	m.tracesSealed.Add(1)
}

// RecordTraceQuarantined records a trace that failed validation at seal.
func (m *Metrics) RecordTraceQuarantined() {
	m.tracesQuarantined.Add(1)
}

// RecordTraceAbandoned records a trace garbage-collected for inactivity.
func (m *Metrics) RecordTraceAbandoned() {
	m.tracesAbandoned.Add(1)
}

// RecordDuration records a retrieval duration.
func (m *Metrics) RecordDuration(d time.Duration) {
	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, d)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time snapshot of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	durationCount := len(m.durations)
	var total time.Duration
	for _, d := range m.durations {
		total += d
	}
	m.mu.Unlock()

	var avgMs int64
	if durationCount > 0 {
		avgMs = (total / time.Duration(durationCount)).Milliseconds()
	}

	return MetricsSnapshot{
		RetrievalTotal:    m.retrievalTotal.Load(),
		RetrievalPartial:  m.retrievalPartial.Load(),
		FallbackScans:     m.fallbackScans.Load(),
		DecayPasses:       m.decayPasses.Load(),
		DecaySkipped:      m.decaySkipped.Load(),
		ItemsEvicted:      m.itemsEvicted.Load(),
		IndexRebuilds:     m.indexRebuilds.Load(),
		TracesSealed:      m.tracesSealed.Load(),
		TracesQuarantined: m.tracesQuarantined.Load(),
		TracesAbandoned:   m.tracesAbandoned.Load(),
		AvgRetrievalMs:    avgMs,
	}
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.retrievalTotal.Store(0)
	m.retrievalPartial.Store(0)
	m.fallbackScans.Store(0)
	m.decayPasses.Store(0)
	m.decaySkipped.Store(0)
	m.itemsEvicted.Store(0)
	m.indexRebuilds.Store(0)
	m.tracesSealed.Store(0)
	m.tracesQuarantined.Store(0)
	m.tracesAbandoned.Store(0)

	m.mu.Lock()
	m.durations = m.durations[:0]
	m.mu.Unlock()
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RetrievalTotal    int64
	RetrievalPartial  int64
	FallbackScans     int64
	DecayPasses       int64
	DecaySkipped      int64
	ItemsEvicted      int64
	IndexRebuilds     int64
	TracesSealed      int64
	TracesQuarantined int64
	TracesAbandoned   int64
	AvgRetrievalMs    int64
}
