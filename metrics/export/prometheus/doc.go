// Package prometheus exposes gatekeeper engine metrics as a
// prometheus.Collector.
//
// Register [NewCollector] with an existing registry, or mount [Handler]
// for a standalone /metrics endpoint:
//
//	h, err := prometheus.Handler(engine)
//	mux.Handle("/metrics", h)
//
// Counters are named gatekeeper_*_total. Validation latency is exported as
// the gatekeeper_validate_latency_seconds histogram when latency histograms
// are enabled in the engine config.
package prometheus
