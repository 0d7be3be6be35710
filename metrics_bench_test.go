package goLearn

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goLearn/middleware"
	"golang.org/x/oauth2"
)

// newCannedClient builds a signed-in client whose network always answers 200, so the
// benchmarks measure the client's own request path.
func newCannedClient(b *testing.B, metrics bool) *Client {
	b.Helper()

	hc := &http.Client{Transport: middleware.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Request:    req,
		}, nil
	})}

	cfg := DefaultConfig()
	cfg.BaseURL = "http://golearn.test"
	cfg.Metrics.Enabled = metrics
	c, err := New().WithConfig(cfg).WithHTTPClient(hc).Build()
	if err != nil {
		b.Fatalf("build client: %v", err)
	}
	b.Cleanup(func() { _ = c.Close() })

	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}
	if err := c.establish(context.Background(), tok); err != nil {
		b.Fatalf("establish session: %v", err)
	}
	return c
}

func roundTrip(c *Client) error {
	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"/me", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		return err
	}
	middleware.DrainAndClose(resp)
	return nil
}

func BenchmarkTransportRoundTrip(b *testing.B) {
	c := newCannedClient(b, true)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := roundTrip(c); err != nil {
			b.Fatalf("round trip: %v", err)
		}
	}
	b.StopTimer()
	if got := c.MetricsSnapshot().Counters[MetricRequest]; got < uint64(b.N) {
		b.Fatalf("expected at least %d requests counted, got %d", b.N, got)
	}
}

func BenchmarkTransportRoundTripMetricsDisabled(b *testing.B) {
	c := newCannedClient(b, false)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := roundTrip(c); err != nil {
			b.Fatalf("round trip: %v", err)
		}
	}
}

func BenchmarkTransportRoundTripParallel(b *testing.B) {
	c := newCannedClient(b, true)
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := roundTrip(c); err != nil {
				b.Errorf("round trip: %v", err)
				return
			}
		}
	})
}

func BenchmarkMetricsIncRequestParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricRequest)
		}
	})
}

// Counters touched together when a burst of expired requests replays behind one refresh.
var replayBurstMetricIDs = [...]MetricID{
	MetricRequest,
	MetricExpiredResponse,
	MetricRefreshCoalesced,
	MetricReplay,
}

func BenchmarkMetricsIncReplayBurstParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(replayBurstMetricIDs[idx])
			idx++
			if idx == len(replayBurstMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsObserveRefreshLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricRefreshLatency, d)
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricRequest)
	m.Observe(MetricRefreshLatency, 40*time.Millisecond)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
