// Package otel publishes goLearn client metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family
// (requests, token refresh, session, dropped events), with the family label carried
// as an attribute, plus gauges for each latency bucket, count and sum. One callback
// reads [goLearn.Client.MetricsSnapshot] and [goLearn.Client.EventsDroppedByType]
// on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
