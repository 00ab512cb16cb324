// Package otel publishes blogauth engine metrics through an OpenTelemetry
// Meter.
//
// [New] registers one Int64ObservableCounter per engine counter and, for the
// login latency histogram, an Int64ObservableGauge of cumulative bucket
// counts keyed by an "le" attribute. A single callback reads
// Engine.MetricsSnapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
