package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
)

var errSessionNotOwned = errors.New("session not owned by user")

// LogoutErrors carries host-level sentinel errors used by the logout flows.
type LogoutErrors struct {
	SessionNotOwned error
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Cache  SessionCache
	Owners SessionOwners
	Warn   func(string, ...any)
	Errors LogoutErrors
}

func normalizeLogoutDeps(deps *LogoutDeps) {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.Errors.SessionNotOwned == nil {
		deps.Errors.SessionNotOwned = errSessionNotOwned
	}
}

// RunLogout invalidates one session of userID on both sides of the dual
// check. A session that belongs to another user is left alone and reported
// as SessionNotOwned. Removing it from either side is enough to invalidate
// it, so only a double failure is returned.
func RunLogout(ctx context.Context, userID, sessionID string, deps LogoutDeps) error {
	normalizeLogoutDeps(&deps)

	owned, err := sessionOwnedBy(ctx, userID, sessionID, deps)
	if err != nil {
		return err
	}
	if !owned {
		return deps.Errors.SessionNotOwned
	}

	setErr := deps.Owners.RemoveUserSession(ctx, userID, sessionID)
	if errors.Is(setErr, store.ErrNotFound) {
		setErr = nil
	}
	cacheErr := deps.Cache.Delete(ctx, sessionID)

	switch {
	case setErr != nil && cacheErr != nil:
		return errors.Join(setErr, cacheErr)
	case setErr != nil:
		deps.Warn("logout left session id in user set", "user_id", userID, "session_id", sessionID, "error", setErr)
	case cacheErr != nil:
		deps.Warn("logout left session in cache", "user_id", userID, "session_id", sessionID, "error", cacheErr)
	}
	return nil
}

// sessionOwnedBy reports whether sessionID may be ended for userID: it is in
// the user's set or its cache entry names the user. A session already gone
// from both sides counts as owned, so a repeated logout succeeds.
func sessionOwnedBy(ctx context.Context, userID, sessionID string, deps LogoutDeps) (bool, error) {
	user, err := deps.Owners.GetUser(ctx, userID)
	switch {
	case err == nil:
		if user.HasSession(sessionID) {
			return true, nil
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return false, err
	}

	sess, err := deps.Cache.Get(ctx, sessionID)
	switch {
	case err == nil:
		return sess.UserID == userID, nil
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		return true, nil
	default:
		return false, err
	}
}

// RunLogoutAll clears the user's session set first, which invalidates every
// session at once, then deletes the cache entries. Cache delete failures are
// logged; the entries can no longer pass the dual check.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	normalizeLogoutDeps(&deps)

	ids, err := deps.Owners.ClearUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	removed, err := deps.Cache.DeleteMany(ctx, ids)
	if err != nil {
		deps.Warn("logout all left cached sessions", "user_id", userID, "tracked", len(ids), "removed", removed, "error", err)
	}
	return len(ids), nil
}

// RunRevokeSession removes a session id from the owner's set only. The cache
// entry is left to expire.
func RunRevokeSession(ctx context.Context, userID, sessionID string, deps LogoutDeps) error {
	return deps.Owners.RemoveUserSession(ctx, userID, sessionID)
}

// RunListSessions returns the cached descriptors of every session still
// tracked for the user. Ids whose cache entry expired are skipped.
func RunListSessions(ctx context.Context, userID string, deps LogoutDeps) ([]*SessionInfo, error) {
	user, err := deps.Owners.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cached, err := deps.Cache.GetMany(ctx, user.SessionIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*SessionInfo, 0, len(cached))
	for _, sess := range cached {
		if sess.UserID != userID {
			continue
		}
		out = append(out, &SessionInfo{SessionID: sess.SessionID, Email: sess.Email, CreatedAt: sess.CreatedAt})
	}
	return out, nil
}

// SessionInfo is the listing shape of one live session.
type SessionInfo struct {
	SessionID string
	Email     string
	CreatedAt int64
}
