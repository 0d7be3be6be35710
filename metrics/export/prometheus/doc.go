// Package prometheus renders goLearn client metrics in Prometheus text format.
//
// [NewPrometheusExporter] wraps a [goLearn.Client] and exposes an [http.Handler] for a
// /metrics endpoint. Client counters are grouped into three labelled families
// (golearn_requests_total, golearn_token_refresh_total, golearn_session_total), event drops
// are golearn_events_dropped_total{type=...}, and the single histogram is
// golearn_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
