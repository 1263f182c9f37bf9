package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gatekeeper/store"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	User    *store.User
	Session *IssuedSession
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	SessionCreated int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountInactive    error
	EmailUnverified    error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	RequireVerifiedEmail bool

	FindUserByEmail  func(context.Context, string) (*store.User, error)
	VerifyCredential func(*store.User, string) bool
	IssueSession     func(context.Context, *store.User) (*IssuedSession, error)

	// RehashCredential upgrades a verified but outdated password hash. A
	// failure is logged and never blocks the login.
	RehashCredential func(context.Context, *store.User, string) (bool, error)
	Warn             func(string, ...any)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}

// RunLogin checks the credential pair and opens a session. Unknown email and
// wrong password are indistinguishable to the caller.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.FindUserByEmail == nil || deps.VerifyCredential == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(userID, reason string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": reason,
			}
		})
		return nil, err
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("", "unknown_email", deps.Errors.InvalidCredentials)
		}
		return fail("", "lookup_failed", err)
	}
	if !deps.VerifyCredential(user, password) {
		return fail(user.ID, "bad_password", deps.Errors.InvalidCredentials)
	}
	if !user.IsActive {
		return fail(user.ID, "inactive", deps.Errors.AccountInactive)
	}
	if deps.RequireVerifiedEmail && !user.IsEmailVerified {
		return fail(user.ID, "email_unverified", deps.Errors.EmailUnverified)
	}
	if deps.RehashCredential != nil {
		if _, err := deps.RehashCredential(ctx, user, password); err != nil {
			deps.Warn("password rehash failed", "user_id", user.ID, "error", err)
		}
	}

	issued, err := deps.IssueSession(ctx, user)
	if err != nil {
		return fail(user.ID, "session_create_failed", err)
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, issued.Session.SessionID, nil, nil)
	return &LoginResult{User: user, Session: issued}, nil
}
