// Package metrics provides lock-free counters and latency histograms for
// gatekeeper observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. Histograms use 8 fixed buckets
// (≤5ms … +Inf). Both are allocation-free on the write path.
//
// # Architecture boundaries
//
// This package owns metric storage. Metric identifiers and snapshots live in
// the root package; export (Prometheus, OTel) lives in metrics/export/ and
// reads snapshots.
package metrics
