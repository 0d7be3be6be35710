package prometheus

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	goLearn "github.com/MrEthical07/goLearn"
	"github.com/MrEthical07/goLearn/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// MetricsSource is satisfied by *goLearn.Client.
type MetricsSource interface {
	MetricsSnapshot() goLearn.MetricsSnapshot
	EventsDroppedByType() map[string]uint64
}

// PrometheusExporter renders client metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter reading from client.
func NewPrometheusExporter(client *goLearn.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource creates an exporter from any [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. Counter families are omitted while client metrics
// are disabled; event drops are always reported.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snapshot := p.source.MetricsSnapshot()

	var e exposition
	if len(snapshot.Counters) > 0 {
		for _, f := range internaldefs.Families {
			e.family(f.Name, f.Help, "counter")
			for _, m := range f.Members {
				e.sample(f.Name, label(f.Label, m.Value), snapshot.Counters[m.ID])
			}
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		e.family(def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			e.sample(def.Name+"_bucket", label("le", le), cumulative[i])
		}
		e.line(def.Name+"_sum", "", strconv.FormatFloat(snapshot.HistogramSums[def.ID].Seconds(), 'g', -1, 64))
		e.sample(def.Name+"_count", "", cumulative[len(cumulative)-1])
	}

	dropped := p.source.EventsDroppedByType()
	if len(dropped) > 0 {
		types := make([]string, 0, len(dropped))
		for t := range dropped {
			types = append(types, t)
		}
		sort.Strings(types)
		e.family(internaldefs.EventsDroppedName, internaldefs.EventsDroppedHelp, "counter")
		for _, t := range types {
			e.sample(internaldefs.EventsDroppedName, label(internaldefs.EventsDroppedLabel, t), dropped[t])
		}
	}

	return e.String()
}

type exposition struct {
	strings.Builder
}

func (e *exposition) family(name, help, kind string) {
	e.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	e.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (e *exposition) sample(name, labels string, v uint64) {
	e.line(name, labels, strconv.FormatUint(v, 10))
}

func (e *exposition) line(name, labels, value string) {
	e.WriteString(name)
	e.WriteString(labels)
	e.WriteByte(' ')
	e.WriteString(value)
	e.WriteByte('\n')
}

func label(key, value string) string {
	return "{" + key + "=\"" + escapeLabel(value) + "\"}"
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}

func escapeLabel(v string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`).Replace(v)
}
