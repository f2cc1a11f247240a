// Package otel publishes authcore Engine counters as OpenTelemetry
// observable instruments.
//
// One Int64ObservableCounter is registered per counter and one
// Int64ObservableGauge per cumulative histogram bucket. A single callback
// reads the Engine snapshot on each collection. The caller owns the
// MeterProvider.
package otel
