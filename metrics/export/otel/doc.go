// Package otel publishes hubauth engine metrics through an OpenTelemetry
// Meter.
//
// Each counter becomes an Int64ObservableCounter and each latency bucket an
// Int64ObservableGauge. The caller owns the MeterProvider; one registered
// callback reads Engine.MetricsSnapshot per collection.
package otel
