package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gatekeeper/store"
)

type EmailVerificationMetrics struct {
	EmailVerificationRequest int
	EmailVerificationSuccess int
	EmailVerificationFailure int
	SessionCreated           int
}

type EmailVerificationEvents struct {
	EmailVerificationRequest string
	EmailVerificationConfirm string
}

type EmailVerificationErrors struct {
	EngineNotReady               error
	EmailVerificationDisabled    error
	EmailVerificationInvalid     error
	EmailVerificationUnavailable error
	AccountInactive              error
}

// Challenge is a generated verification challenge. Token goes to the user;
// only SecretHash is stored.
type Challenge struct {
	ID         string
	Token      string
	SecretHash [32]byte
}

type EmailVerificationDeps struct {
	Enabled         bool
	VerificationTTL time.Duration
	MaxAttempts     int

	FindUserByEmail func(context.Context, string) (*store.User, error)
	MarkVerified    func(context.Context, string) (*store.User, error)
	IssueSession    func(context.Context, *store.User) (*IssuedSession, error)

	GenerateChallenge func() (Challenge, error)
	ParseChallenge    func(string) (string, [32]byte, error)
	SaveChallenge     func(ctx context.Context, challengeID, userID string, secretHash [32]byte, ttl time.Duration) error
	ConsumeChallenge  func(ctx context.Context, challengeID string, secretHash [32]byte, maxAttempts int) (string, error)
	MapStoreError     func(error) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics EmailVerificationMetrics
	Events  EmailVerificationEvents
	Errors  EmailVerificationErrors
}

func normalizeEmailVerificationDeps(deps *EmailVerificationDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 5
	}
}

// RunRequestEmailVerification stores a challenge for the user behind email
// and returns its token for delivery. Unknown and already verified addresses
// receive an unusable token so the response does not reveal which emails
// are registered.
func RunRequestEmailVerification(ctx context.Context, email string, deps EmailVerificationDeps) (string, error) {
	normalizeEmailVerificationDeps(&deps)

	if !deps.Enabled {
		deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, false, "", "", deps.Errors.EmailVerificationDisabled, nil)
		return "", deps.Errors.EmailVerificationDisabled
	}
	if deps.FindUserByEmail == nil || deps.GenerateChallenge == nil || deps.SaveChallenge == nil {
		return "", deps.Errors.EngineNotReady
	}
	if email == "" {
		deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, false, "", "", deps.Errors.EmailVerificationInvalid, func() map[string]string {
			return map[string]string{"reason": "empty_email"}
		})
		return "", deps.Errors.EmailVerificationInvalid
	}

	fake := func(userID, noop string) (string, error) {
		c, err := deps.GenerateChallenge()
		if err != nil {
			return "", deps.Errors.EmailVerificationUnavailable
		}
		deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, true, userID, "", nil, func() map[string]string {
			return map[string]string{"email": email, "noop": noop}
		})
		deps.MetricInc(deps.Metrics.EmailVerificationRequest)
		return c.Token, nil
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fake("", "unknown_email")
		}
		return "", err
	}
	if user.IsEmailVerified {
		return fake(user.ID, "already_verified")
	}
	if !user.IsActive {
		return fake(user.ID, "inactive")
	}

	c, err := deps.GenerateChallenge()
	if err != nil {
		return "", deps.Errors.EmailVerificationUnavailable
	}
	if err := deps.SaveChallenge(ctx, c.ID, user.ID, c.SecretHash, deps.VerificationTTL); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.EmailVerificationFailure)
		deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, false, user.ID, "", mapped, nil)
		return "", mapped
	}

	deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	deps.MetricInc(deps.Metrics.EmailVerificationRequest)
	return c.Token, nil
}

// RunConfirmEmailVerification consumes the challenge, marks the email as
// verified and opens a session for the user.
func RunConfirmEmailVerification(ctx context.Context, token string, deps EmailVerificationDeps) (*LoginResult, error) {
	normalizeEmailVerificationDeps(&deps)

	fail := func(userID, reason string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.EmailVerificationFailure)
		deps.EmitAudit(ctx, deps.Events.EmailVerificationConfirm, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	if !deps.Enabled {
		return fail("", "disabled", deps.Errors.EmailVerificationDisabled)
	}
	if deps.ParseChallenge == nil || deps.ConsumeChallenge == nil || deps.MarkVerified == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" {
		return fail("", "empty_challenge", deps.Errors.EmailVerificationInvalid)
	}

	challengeID, hash, err := deps.ParseChallenge(token)
	if err != nil {
		return fail("", "parse_failed", deps.Errors.EmailVerificationInvalid)
	}
	userID, err := deps.ConsumeChallenge(ctx, challengeID, hash, deps.MaxAttempts)
	if err != nil {
		return fail("", "consume_failed", deps.MapStoreError(err))
	}

	user, err := deps.MarkVerified(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(userID, "user_missing", deps.Errors.EmailVerificationInvalid)
		}
		return fail(userID, "mark_failed", err)
	}
	if !user.IsActive {
		return fail(userID, "inactive", deps.Errors.AccountInactive)
	}

	issued, err := deps.IssueSession(ctx, user)
	if err != nil {
		return fail(userID, "session_create_failed", err)
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.EmailVerificationSuccess)
	deps.EmitAudit(ctx, deps.Events.EmailVerificationConfirm, true, user.ID, issued.Session.SessionID, nil, nil)
	return &LoginResult{User: user, Session: issued}, nil
}
