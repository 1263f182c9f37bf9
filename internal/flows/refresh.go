package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
	SessionCreated int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess string
	RefreshFailure string
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Session      SessionDeps
	IssueSession func(context.Context, *store.User) (*IssuedSession, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RefreshMetrics
	Events  RefreshEvents
}

// RefreshResult is the replacement session and its owner.
type RefreshResult struct {
	User     *store.User
	Session  *IssuedSession
	Replaced string
}

// RunRefresh replaces oldSessionID with a new session. The old session must
// currently pass the dual check. It is removed from the owner's set before the
// new one is created, so the two are never valid at the same time.
func RunRefresh(ctx context.Context, userID, oldSessionID string, deps RefreshDeps) (*RefreshResult, error) {
	sd := deps.Session
	normalizeSessionDeps(&sd)
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if sd.Cache == nil || sd.Owners == nil || deps.IssueSession == nil {
		return nil, sd.Errors.EngineNotReady
	}

	fail := func(reason string, err error) (*RefreshResult, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, userID, oldSessionID, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	if userID == "" || oldSessionID == "" {
		return fail("missing_session", sd.Errors.AuthenticationRequired)
	}

	sess, err := sd.Cache.Get(ctx, oldSessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return fail("session_missing", sd.Errors.SessionExpiredRevoked)
		}
		return fail("cache_unavailable", fmt.Errorf("%w: %v", sd.Errors.CheckFailed, err))
	}
	if sess.UserID != userID {
		return fail("owner_mismatch", sd.Errors.SessionExpiredRevoked)
	}

	user, err := sd.Owners.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("user_missing", sd.Errors.SessionExpiredRevoked)
		}
		return fail("store_unavailable", fmt.Errorf("%w: %v", sd.Errors.CheckFailed, err))
	}
	if !user.HasSession(oldSessionID) {
		return fail("session_untracked", sd.Errors.SessionExpiredRevoked)
	}
	if !user.IsActive {
		return fail("inactive", sd.Errors.AccountInactive)
	}

	if err := sd.Owners.RemoveUserSession(ctx, userID, oldSessionID); err != nil {
		return fail("revoke_failed", err)
	}
	if err := sd.Cache.Delete(ctx, oldSessionID); err != nil {
		sd.Warn("refresh left old session in cache", "user_id", userID, "session_id", oldSessionID, "error", err)
	}

	issued, err := deps.IssueSession(ctx, user)
	if err != nil {
		return fail("session_create_failed", err)
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, userID, issued.Session.SessionID, nil, func() map[string]string {
		return map[string]string{"replaced_session_id": oldSessionID}
	})
	return &RefreshResult{User: user, Session: issued, Replaced: oldSessionID}, nil
}
