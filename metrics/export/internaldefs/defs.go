package internaldefs

import (
	goLearn "github.com/MrEthical07/goLearn"
)

// Member binds one client counter to its label value inside a Family.
type Member struct {
	ID    goLearn.MetricID
	Value string
}

// Family is one exported counter name whose series differ by a single label.
type Family struct {
	Name    string
	Help    string
	Label   string
	Members []Member
}

// HistogramDef names one client histogram for exporters.
type HistogramDef struct {
	ID   goLearn.MetricID
	Name string
	Help string
}

// Families groups every client counter by the part of the client it describes.
var Families = []Family{
	{
		Name:  "golearn_requests_total",
		Help:  "Authenticated round trips by what happened to them.",
		Label: "result",
		Members: []Member{
			{ID: goLearn.MetricRequest, Value: "sent"},
			{ID: goLearn.MetricRequestFailure, Value: "transport_error"},
			{ID: goLearn.MetricExpiredResponse, Value: "expired"},
			{ID: goLearn.MetricReplay, Value: "replayed"},
			{ID: goLearn.MetricReplaySkipped, Value: "replay_skipped"},
			{ID: goLearn.MetricRetry, Value: "retried"},
		},
	},
	{
		Name:  "golearn_token_refresh_total",
		Help:  "Token refresh activity by outcome.",
		Label: "outcome",
		Members: []Member{
			{ID: goLearn.MetricRefreshStarted, Value: "started"},
			{ID: goLearn.MetricRefreshSuccess, Value: "success"},
			{ID: goLearn.MetricRefreshFailure, Value: "failure"},
			{ID: goLearn.MetricRefreshCoalesced, Value: "coalesced"},
			{ID: goLearn.MetricProactiveRefresh, Value: "proactive"},
		},
	},
	{
		Name:  "golearn_session_total",
		Help:  "Session transitions seen by the client.",
		Label: "event",
		Members: []Member{
			{ID: goLearn.MetricLoginSuccess, Value: "login_success"},
			{ID: goLearn.MetricLoginFailure, Value: "login_failure"},
			{ID: goLearn.MetricLogout, Value: "logout"},
			{ID: goLearn.MetricSignOut, Value: "sign_out"},
		},
	},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goLearn.MetricRefreshLatency, Name: "golearn_refresh_latency_seconds", Help: "Refresh call latency."},
}

// Events lost to queue backpressure, one series per event type.
const (
	EventsDroppedName  = "golearn_events_dropped_total"
	EventsDroppedHelp  = "Events dropped before reaching the sink, by event type."
	EventsDroppedLabel = "type"
)

// HistogramBounds are the Prometheus le labels matching goLearn.HistogramBucketBounds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the instrument name suffixes used where labels are not available.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding missing buckets with zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
