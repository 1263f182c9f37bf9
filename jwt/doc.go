// Package jwt issues and verifies the signed credential that carries a
// (userId, sessionId) pair between requests.
//
// A verified token only proves the pair was issued by this process's key.
// Whether the session is still live is decided by the session cache and the
// owning user's session set, never by the token alone.
//
// Verification failures are reported as one of ErrMalformed,
// ErrSignatureInvalid or ErrExpired so callers can match with errors.Is.
package jwt
