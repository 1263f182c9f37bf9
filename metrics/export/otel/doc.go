// Package otel binds gatekeeper engine metrics to OpenTelemetry
// asynchronous instruments.
//
// [New] registers an Int64ObservableCounter per engine counter and a set of
// cumulative bucket gauges for the validation latency histogram. The caller
// owns the MeterProvider; the exporter only reads engine snapshots.
package otel
