package gatekeeper

import (
	"time"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/store"
)

// Identity is the authenticated principal attached to a request. User is the
// external representation and never carries the credential hash or the
// session id set.
type Identity struct {
	UserID    string
	SessionID string
	User      identity.PublicUser
	ExpiresAt time.Time

	record *store.User
}

func newIdentity(u *store.User, sessionID string, expiresAt time.Time) *Identity {
	return &Identity{
		UserID:    u.ID,
		SessionID: sessionID,
		User:      identity.External(u),
		ExpiresAt: expiresAt,
		record:    u,
	}
}

// Authenticated reports whether id carries a session. Identities built with
// Engine.IdentityFor have none.
func (id *Identity) Authenticated() bool {
	return id != nil && id.SessionID != ""
}

// LoginResult is returned by every operation that opens a session.
type LoginResult struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	User      identity.PublicUser
}

// SessionInfo describes one live session of a user.
type SessionInfo struct {
	SessionID string
	Email     string
	CreatedAt time.Time
}

// HealthStatus is the result of Engine.Health.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}
