package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/internal/audit"
	"github.com/MrEthical07/gatekeeper/internal/flows"
	"github.com/MrEthical07/gatekeeper/internal/stores"
	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
	"github.com/MrEthical07/gatekeeper/store/cached"
)

// Engine is the session and authorization engine. Build it with New().Build.
// All methods are safe for concurrent use.
type Engine struct {
	config            Config
	logger            *slog.Logger
	store             store.Store
	permissions       *permission.Registry
	roles             *permission.RoleManager
	identities        *identity.Store
	sessionStore      *session.Store
	verificationStore *stores.ChallengeStore
	tokens            *jwt.Manager
	audit             *audit.Dispatcher
	metrics           *Metrics
	flow              flows.Service
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Close flushes pending audit events. The Redis client and the durable
// store belong to the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Health pings the session cache.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	latency, err := e.sessionStore.Ping(ctx)
	return HealthStatus{RedisAvailable: err == nil, RedisLatency: latency}
}

// CacheStats reports role and permission read cache hits and misses. It is
// zero when the cache is disabled.
func (e *Engine) CacheStats() cached.Stats {
	if e == nil {
		return cached.Stats{}
	}
	if c, ok := e.store.(*cached.Store); ok {
		return c.Stats()
	}
	return cached.Stats{}
}

// Permissions returns the permission registry. Prefer the audited
// Engine.CreatePermission family for administrative writes.
func (e *Engine) Permissions() *permission.Registry {
	if e == nil {
		return nil
	}
	return e.permissions
}

// Roles returns the role registry. Prefer the audited Engine.CreateRole
// family for administrative writes.
func (e *Engine) Roles() *permission.RoleManager {
	if e == nil {
		return nil
	}
	return e.roles
}

/*
====================================
SESSIONS
====================================
*/

// Login verifies the email and password and opens a session. An unknown
// email and a wrong password both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Login(ctx, identity.NormalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	return loginResult(res.User, res.Session), nil
}

// ValidateSession runs the per-request check: verify the credential, require
// the session in the cache and in the owner's session set, then slide the
// cache TTL. Failures map to ErrAuthenticationRequired, the token errors,
// ErrSessionExpiredOrRevoked, ErrAccountInactive or ErrCheckFailed.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	res := e.flow.Validate(ctx, token)
	if res.Failure != flows.ValidateFailureNone {
		e.metricInc(MetricSessionRejected)
		return nil, validateFailureError(res)
	}
	e.metricInc(MetricSessionValidated)

	expiresAt := time.Time{}
	if res.Claims.ExpiresAt != nil {
		expiresAt = res.Claims.ExpiresAt.Time
	}
	return newIdentity(res.User, res.Session.SessionID, expiresAt), nil
}

func validateFailureError(res flows.ValidateResult) error {
	switch res.Failure {
	case flows.ValidateFailureMissingCredential:
		return ErrAuthenticationRequired
	case flows.ValidateFailureToken:
		if res.Err != nil {
			return res.Err
		}
		return ErrTokenMalformed
	case flows.ValidateFailureSessionRevoked:
		return ErrSessionExpiredOrRevoked
	case flows.ValidateFailureAccountInactive:
		return ErrAccountInactive
	default:
		return checkFailed(res.Err)
	}
}

// Logout ends one session of userID. Other sessions stay valid, and a
// session that belongs to another user returns ErrSessionExpiredOrRevoked
// without being touched.
func (e *Engine) Logout(ctx context.Context, userID, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" || sessionID == "" {
		return ErrAuthenticationRequired
	}
	if err := e.flow.Logout(ctx, userID, sessionID); err != nil {
		if !errors.Is(err, ErrSessionExpiredOrRevoked) {
			err = checkFailed(err)
		}
		e.emitAudit(ctx, auditEventLogoutSession, false, userID, sessionID, err, nil)
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, userID, sessionID, nil, nil)
	return nil
}

// LogoutAll ends every session of the user and returns how many were
// tracked. Cache entries that cannot be deleted are logged and left to
// expire; they no longer pass validation.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.flow.LogoutAll(ctx, userID)
	if err != nil {
		err = storeError(err)
		e.emitAudit(ctx, auditEventLogoutAll, false, userID, "", err, nil)
		return 0, err
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprint(n)}
	})
	return n, nil
}

// RevokeSession invalidates a session out of band by removing it from the
// owner's session set only.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.flow.RevokeSession(ctx, userID, sessionID); err != nil {
		err = storeError(err)
		e.emitAudit(ctx, auditEventSessionRevoked, false, userID, sessionID, err, nil)
		return err
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
	return nil
}

// ListSessions returns the live sessions of a user.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	list, err := e.flow.ListSessions(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SessionInfo{
			SessionID: s.SessionID,
			Email:     s.Email,
			CreatedAt: time.Unix(s.CreatedAt, 0).UTC(),
		})
	}
	return out, nil
}

// Refresh replaces oldSessionID with a new session. The old session must be
// valid; it is invalidated before the new one exists.
func (e *Engine) Refresh(ctx context.Context, userID, oldSessionID string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Refresh(ctx, userID, oldSessionID)
	if err != nil {
		return nil, err
	}
	return loginResult(res.User, res.Session), nil
}

func loginResult(u *store.User, issued *flows.IssuedSession) *LoginResult {
	return &LoginResult{
		Token:     issued.Token,
		SessionID: issued.Session.SessionID,
		ExpiresAt: issued.ExpiresAt,
		User:      identity.External(u),
	}
}

// checkFailed wraps err as ErrCheckFailed unless it already is one.
func checkFailed(err error) error {
	if err == nil || errors.Is(err, ErrCheckFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCheckFailed, err)
}

// storeError passes lookup misses through and wraps everything else as
// ErrCheckFailed.
func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return checkFailed(err)
}

/*
====================================
COOKIES
====================================
*/

func (e *Engine) CookieName() string {
	return e.config.Cookie.Name
}

// SessionCookie returns the credential cookie for a LoginResult.
func (e *Engine) SessionCookie(res *LoginResult) *http.Cookie {
	return &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    res.Token,
		Path:     "/",
		Domain:   e.config.Cookie.Domain,
		MaxAge:   int(e.config.Session.TTL / time.Second),
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   e.config.SecureCookies(),
		SameSite: e.config.CookieSameSite(),
	}
}

// ExpiredSessionCookie clears the credential cookie.
func (e *Engine) ExpiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   e.config.Cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   e.config.SecureCookies(),
		SameSite: e.config.CookieSameSite(),
	}
}
