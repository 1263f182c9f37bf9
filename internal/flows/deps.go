package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
)

// SessionCache is the subset of session.Store the flows need.
type SessionCache interface {
	Put(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	GetMany(ctx context.Context, sessionIDs []string) ([]*session.Session, error)
	Extend(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteMany(ctx context.Context, sessionIDs []string) (int, error)
}

// SessionOwners is the durable side of the dual check: the user record and
// its persisted session id set.
type SessionOwners interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	AddUserSession(ctx context.Context, userID, sessionID string) error
	RemoveUserSession(ctx context.Context, userID, sessionID string) error
	ClearUserSessions(ctx context.Context, userID string) ([]string, error)
}

// TokenCodec issues and verifies session credentials.
type TokenCodec interface {
	Issue(userID, sessionID string) (string, error)
	Verify(token string) (*jwt.Claims, error)
}

// AuditFunc emits one audit event. meta is evaluated lazily.
type AuditFunc func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)

// SessionErrors carries host-level sentinel errors shared by session flows.
type SessionErrors struct {
	EngineNotReady         error
	SessionExpiredRevoked  error
	CheckFailed            error
	AccountInactive        error
	AuthenticationRequired error
}

// SessionDeps is the dependency set every session-issuing flow shares.
type SessionDeps struct {
	Cache        SessionCache
	Owners       SessionOwners
	Tokens       TokenCodec
	TokenTTL     time.Duration
	NewSessionID func() (string, error)
	Now          func() time.Time
	Warn         func(string, ...any)
	Errors       SessionErrors
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Session           SessionDeps
	Login             LoginDeps
	Validate          ValidateDeps
	Logout            LogoutDeps
	Refresh           RefreshDeps
	EmailVerification EmailVerificationDeps
}

func normalizeSessionDeps(deps *SessionDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}
