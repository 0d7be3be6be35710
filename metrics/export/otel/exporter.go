package otel

import (
	"context"
	"errors"
	"fmt"
	"sort"

	goLearn "github.com/MrEthical07/goLearn"
	"github.com/MrEthical07/goLearn/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *goLearn.Client.
type MetricsSource interface {
	MetricsSnapshot() goLearn.MetricsSnapshot
	EventsDroppedByType() map[string]uint64
}

// familySeries is one observable counter per family; each member is observed with its
// label as an attribute.
type familySeries struct {
	instrument metric.Int64ObservableCounter
	members    []memberSeries
}

type memberSeries struct {
	id    goLearn.MetricID
	attrs metric.ObserveOption
}

type histogramSeries struct {
	id      goLearn.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// OTelExporter publishes client metrics through observable instruments. Close
// unregisters the callback.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	families     []familySeries
	histograms   []histogramSeries
	dropped      metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from client on every
// collection.
func NewOTelExporter(meter metric.Meter, client *goLearn.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, f := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", f.Name, err)
		}
		series := familySeries{instrument: ins}
		for _, m := range f.Members {
			series.members = append(series.members, memberSeries{
				id:    m.ID,
				attrs: metric.WithAttributes(attribute.String(f.Label, m.Value)),
			})
		}
		e.families = append(e.families, series)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newHistogramSeries(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		for _, b := range h.buckets {
			observables = append(observables, b)
		}
		observables = append(observables, h.count, h.sum)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.EventsDroppedName,
		metric.WithDescription(internaldefs.EventsDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create events dropped counter: %w", err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func newHistogramSeries(meter metric.Meter, def internaldefs.HistogramDef) (histogramSeries, error) {
	h := histogramSeries{id: def.ID}
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return h, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
		}
		h.buckets[i] = ins
	}
	var err error
	if h.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram sample count.")); err != nil {
		return h, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
	}
	if h.sum, err = meter.Float64ObservableGauge(def.Name+"_sum", metric.WithDescription("Histogram sample sum in seconds."), metric.WithUnit("s")); err != nil {
		return h, fmt.Errorf("create histogram sum gauge %s: %w", def.Name, err)
	}
	return h, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	if len(snapshot.Counters) > 0 {
		for _, f := range e.families {
			for _, m := range f.members {
				o.ObserveInt64(f.instrument, int64(snapshot.Counters[m.id]), m.attrs)
			}
		}
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(h.sum, snapshot.HistogramSums[h.id].Seconds())
	}

	dropped := e.source.EventsDroppedByType()
	types := make([]string, 0, len(dropped))
	for t := range dropped {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		o.ObserveInt64(e.dropped, int64(dropped[t]),
			metric.WithAttributes(attribute.String(internaldefs.EventsDroppedLabel, t)))
	}
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
