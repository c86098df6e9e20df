// Package otel binds goAuthClient counters, histograms and session state to
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family,
// with the family label carried as an attribute, and Int64ObservableGauge
// instruments for histogram buckets and the session gauges. A single
// callback reads the engine on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
