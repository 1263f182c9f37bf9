// Package session provides the Redis-backed session cache and the compact
// binary encoding of cached session descriptors.
//
// # Binary encoding
//
// Descriptors are stored as a versioned binary blob. Decode rejects unknown
// versions and truncated input instead of guessing.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// A cache hit alone does not make a session valid: the caller must also find
// the id in the owning user's durable session set.
//
// # What this package must NOT do
//
//   - Import gatekeeper, jwt, or permission (no upward imports).
//   - Make authorization decisions.
//   - Store credentials or password material in [Session] fields.
package session
