// Package stores holds the Redis challenge store behind email verification.
//
// A challenge is a Redis hash with the owner id, the SHA-256 of its secret
// and an attempt counter, kept under a TTL. Consume runs as one Lua script
// so a match deletes the challenge atomically and the last allowed miss
// burns it. Challenge generation and what a verified challenge means live in
// internal/flows.
package stores
