package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	goLearn "github.com/MrEthical07/goLearn"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goLearn.MetricsSnapshot
	dropped  map[string]uint64
}

func (f *fakeSource) MetricsSnapshot() goLearn.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goLearn.MetricsSnapshot{
		Counters:   make(map[goLearn.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms:    make(map[goLearn.MetricID][]uint64, len(f.snapshot.Histograms)),
		HistogramSums: make(map[goLearn.MetricID]time.Duration, len(f.snapshot.HistogramSums)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, v := range f.snapshot.HistogramSums {
		out.HistogramSums[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) EventsDroppedByType() map[string]uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]uint64, len(f.dropped))
	for k, v := range f.dropped {
		out[k] = v
	}
	return out
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

// sumPoint returns the value of the counter point named name whose key attribute equals value.
func sumPoint(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("golearn-test")

	src := &fakeSource{
		snapshot: goLearn.MetricsSnapshot{
			Counters: map[goLearn.MetricID]uint64{
				goLearn.MetricLoginSuccess: 3,
			},
			Histograms: map[goLearn.MetricID][]uint64{
				goLearn.MetricRefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: map[string]uint64{goLearn.EventSignOut: 1},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("golearn-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("golearn-test")

	src := &fakeSource{
		snapshot: goLearn.MetricsSnapshot{
			Counters: map[goLearn.MetricID]uint64{
				goLearn.MetricLoginSuccess: 1,
			},
			Histograms: map[goLearn.MetricID][]uint64{
				goLearn.MetricRefreshLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goLearn.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsFamilyValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("golearn-test")

	src := &fakeSource{
		snapshot: goLearn.MetricsSnapshot{
			Counters: map[goLearn.MetricID]uint64{
				goLearn.MetricRefreshSuccess: 4,
				goLearn.MetricRequest:        9,
				goLearn.MetricSignOut:        1,
			},
			Histograms: map[goLearn.MetricID][]uint64{},
		},
		dropped: map[string]uint64{goLearn.EventRefresh: 2, goLearn.EventSignOut: 0},
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)

	cases := []struct {
		name, key, value string
		want             int64
	}{
		{"golearn_token_refresh_total", "outcome", "success", 4},
		{"golearn_token_refresh_total", "outcome", "failure", 0},
		{"golearn_requests_total", "result", "sent", 9},
		{"golearn_session_total", "event", "sign_out", 1},
		{"golearn_events_dropped_total", "type", goLearn.EventRefresh, 2},
		{"golearn_events_dropped_total", "type", goLearn.EventSignOut, 0},
	}
	for _, tc := range cases {
		got, ok := sumPoint(rm, tc.name, tc.key, tc.value)
		if !ok {
			t.Fatalf("missing %s{%s=%q}", tc.name, tc.key, tc.value)
		}
		if got != tc.want {
			t.Fatalf("%s{%s=%q}: expected %d, got %d", tc.name, tc.key, tc.value, tc.want, got)
		}
	}
}

func TestExporterReportsHistogramSum(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("golearn-test")

	src := &fakeSource{
		snapshot: goLearn.MetricsSnapshot{
			Counters: map[goLearn.MetricID]uint64{goLearn.MetricRefreshSuccess: 2},
			Histograms: map[goLearn.MetricID][]uint64{
				goLearn.MetricRefreshLatency: {1, 0, 0, 0, 0, 0, 0, 1},
			},
			HistogramSums: map[goLearn.MetricID]time.Duration{
				goLearn.MetricRefreshLatency: 1500 * time.Millisecond,
			},
		},
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	var sum float64
	var count int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "golearn_refresh_latency_seconds_sum":
				if g, ok := m.Data.(metricdata.Gauge[float64]); ok && len(g.DataPoints) == 1 {
					sum = g.DataPoints[0].Value
				}
			case "golearn_refresh_latency_seconds_count":
				if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) == 1 {
					count = g.DataPoints[0].Value
				}
			}
		}
	}
	if sum != 1.5 {
		t.Fatalf("expected latency sum 1.5s, got %v", sum)
	}
	if count != 2 {
		t.Fatalf("expected latency count 2, got %d", count)
	}
}

func TestNewOTelExporterRejectsNilClient(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("golearn-test")
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}
