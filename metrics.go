package goLearn

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a client counter.
type MetricID uint16

const (
	// MetricRequest counts authenticated round trips, replays included.
	MetricRequest MetricID = iota
	// MetricRequestFailure counts transport errors.
	MetricRequestFailure
	// MetricExpiredResponse counts responses whose status marked the access token expired.
	MetricExpiredResponse
	// MetricRefreshStarted counts refresh calls actually sent.
	MetricRefreshStarted
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshCoalesced counts waiters served by a refresh they did not start.
	MetricRefreshCoalesced
	// MetricProactiveRefresh counts refreshes triggered by an access token near expiry.
	MetricProactiveRefresh
	// MetricReplay counts requests resent after a refresh.
	MetricReplay
	// MetricReplaySkipped counts expired responses returned as-is because the body could
	// not be replayed.
	MetricReplaySkipped
	MetricSignOut
	MetricRetry
	MetricLoginSuccess
	MetricLoginFailure
	MetricLogout
	// MetricRefreshLatency is the only histogram.
	MetricRefreshLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRequest:          "request",
	MetricRequestFailure:   "request_failure",
	MetricExpiredResponse:  "expired_response",
	MetricRefreshStarted:   "refresh_started",
	MetricRefreshSuccess:   "refresh_success",
	MetricRefreshFailure:   "refresh_failure",
	MetricRefreshCoalesced: "refresh_coalesced",
	MetricProactiveRefresh: "proactive_refresh",
	MetricReplay:           "replay",
	MetricReplaySkipped:    "replay_skipped",
	MetricSignOut:          "sign_out",
	MetricRetry:            "retry",
	MetricLoginSuccess:     "login_success",
	MetricLoginFailure:     "login_failure",
	MetricLogout:           "logout",
	MetricRefreshLatency:   "refresh_latency",
}

// String returns the snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric in declaration order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the inclusive upper bounds of the first seven latency buckets.
// The eighth bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// HistogramSums holds the total observed duration per histogram.
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics allocates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only MetricRefreshLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRefreshLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
	if d > 0 {
		atomic.AddUint64(&m.histograms[id].sumNanos, uint64(d))
	}
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Counters are read individually, so a snapshot taken under
// load is not a consistent cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
		s.HistogramSums[MetricRefreshLatency] = time.Duration(atomic.LoadUint64(&m.histograms[MetricRefreshLatency].sumNanos))
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
