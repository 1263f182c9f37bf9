package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissingCredential
	ValidateFailureToken
	ValidateFailureSessionRevoked
	ValidateFailureAccountInactive
	ValidateFailureCheckFailed
)

// ValidateResult returns either the authenticated identity or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Session *session.Session
	User    *store.User
}

// ValidateDeps captures per-request validation dependencies.
type ValidateDeps struct {
	Cache  SessionCache
	Owners SessionOwners
	Tokens TokenCodec
	Warn   func(string, ...any)
}

// RunValidate verifies the credential, then requires the session to be both
// cached and present in the owner's persisted set, then slides the cache TTL.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if token == "" {
		return ValidateResult{Failure: ValidateFailureMissingCredential}
	}

	claims, err := deps.Tokens.Verify(token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}

	sess, err := deps.Cache.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return ValidateResult{Failure: ValidateFailureSessionRevoked, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureCheckFailed, Err: err}
	}
	if sess.UserID != claims.UserID {
		return ValidateResult{Failure: ValidateFailureSessionRevoked}
	}

	user, err := deps.Owners.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ValidateResult{Failure: ValidateFailureSessionRevoked, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureCheckFailed, Err: err}
	}
	if !user.HasSession(claims.SessionID) {
		return ValidateResult{Failure: ValidateFailureSessionRevoked}
	}
	if !user.IsActive {
		return ValidateResult{Failure: ValidateFailureAccountInactive}
	}

	// The cache entry can disappear between Get and Extend; a failed extend
	// only shortens the sliding window, so the request still proceeds.
	if ok, err := deps.Cache.Extend(ctx, claims.SessionID); err != nil {
		deps.Warn("session extend failed", "session_id", claims.SessionID, "error", err)
	} else if !ok {
		return ValidateResult{Failure: ValidateFailureSessionRevoked}
	}

	return ValidateResult{Claims: claims, Session: sess, User: user}
}
