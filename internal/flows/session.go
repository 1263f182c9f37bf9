package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
)

// IssuedSession is a freshly created session and its signed credential.
type IssuedSession struct {
	Token     string
	Session   *session.Session
	ExpiresAt time.Time
}

// RunIssueSession creates a session for user: the credential is signed, the
// descriptor is cached, and the id is recorded in the user's session set.
// When recording fails the cache entry is removed again; an entry that
// survives that cleanup can never pass the dual check and expires with its TTL.
func RunIssueSession(ctx context.Context, user *store.User, deps SessionDeps) (*IssuedSession, error) {
	normalizeSessionDeps(&deps)
	if deps.Cache == nil || deps.Owners == nil || deps.Tokens == nil || deps.NewSessionID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	sessionID, err := deps.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	token, err := deps.Tokens.Issue(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := deps.Now()
	sess := &session.Session{
		SessionID: sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: now.Unix(),
	}
	if err := deps.Cache.Put(ctx, sess); err != nil {
		return nil, err
	}
	if err := deps.Owners.AddUserSession(ctx, user.ID, sessionID); err != nil {
		if delErr := deps.Cache.Delete(ctx, sessionID); delErr != nil {
			deps.Warn("orphan session cleanup failed", "user_id", user.ID, "session_id", sessionID, "error", delErr)
		}
		return nil, err
	}

	return &IssuedSession{
		Token:     token,
		Session:   sess,
		ExpiresAt: now.Add(deps.TokenTTL),
	}, nil
}
