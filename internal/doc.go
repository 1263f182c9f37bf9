// Package internal contains helpers that are private to gatekeeper:
// random session identifiers and verification challenge encoding.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine session operation
//   - metrics: lock-free counters and latency histograms
//   - stores: Redis-backed verification challenge store
//   - validate: struct validation on top of go-playground/validator
package internal
