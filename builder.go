package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/internal"
	"github.com/MrEthical07/gatekeeper/internal/audit"
	"github.com/MrEthical07/gatekeeper/internal/flows"
	"github.com/MrEthical07/gatekeeper/internal/stores"
	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/password"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
	"github.com/MrEthical07/gatekeeper/store/cached"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine from its injected dependencies. A Builder can
// be used for exactly one Build call.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	store     store.Store
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the session cache and verification challenge backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the durable store holding users, roles and permissions.
// The engine does not close it.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go. Several sinks receive every
// event in order. Audit.Enabled must also be set.
func (b *Builder) WithAuditSink(sinks ...AuditSink) *Builder {
	switch len(sinks) {
	case 0:
		b.auditSink = nil
	case 1:
		b.auditSink = sinks[0]
	default:
		b.auditSink = audit.MultiSink(sinks)
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gatekeeper")

	// -------- DURABLE STORE --------
	var durable store.Store = b.store
	if cfg.Cache.Enabled {
		durable = cached.New(durable, cached.Config{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL})
	}

	// -------- CREDENTIALS --------
	hasher, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}
	tokens, err := jwt.NewManager(cfg.jwtConfig())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		store:        durable,
		permissions:  permission.NewRegistry(durable),
		roles:        permission.NewRoleManager(durable, durable),
		identities:   identity.New(durable, durable, durable, hasher),
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL),
		tokens:       tokens,
		metrics:      NewMetrics(cfg.Metrics),
	}
	if cfg.EmailVerification.Enabled {
		engine.verificationStore = stores.NewChallengeStore(b.redis, cfg.EmailVerification.RedisPrefix)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger,
	}, b.auditSink)

	engine.flow = flows.New(engine.buildFlowDeps())

	b.built = true
	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }
	metricInc := func(id int) { e.metricInc(MetricID(id)) }

	sessionDeps := flows.SessionDeps{
		Cache:        e.sessionStore,
		Owners:       e.store,
		Tokens:       e.tokens,
		TokenTTL:     e.tokens.TTL(),
		NewSessionID: internal.NewSessionIDString,
		Warn:         warn,
		Errors: flows.SessionErrors{
			EngineNotReady:         ErrEngineNotReady,
			SessionExpiredRevoked:  ErrSessionExpiredOrRevoked,
			CheckFailed:            ErrCheckFailed,
			AccountInactive:        ErrAccountInactive,
			AuthenticationRequired: ErrAuthenticationRequired,
		},
	}
	issue := func(ctx context.Context, u *store.User) (*flows.IssuedSession, error) {
		issued, err := flows.RunIssueSession(ctx, u, sessionDeps)
		if err != nil {
			if errors.Is(err, ErrEngineNotReady) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
		}
		return issued, nil
	}

	findUser := func(ctx context.Context, email string) (*store.User, error) {
		u, err := e.identities.FindByEmail(ctx, email)
		return u, storeError(err)
	}
	markVerified := func(ctx context.Context, userID string) (*store.User, error) {
		u, err := e.identities.SetEmailVerified(ctx, userID)
		return u, storeError(err)
	}

	deps := flows.Deps{
		Session: sessionDeps,
		Login: flows.LoginDeps{
			RequireVerifiedEmail: e.config.EmailVerification.RequireForLogin,
			FindUserByEmail:      findUser,
			VerifyCredential:     e.identities.VerifyCredential,
			IssueSession:         issue,
			RehashCredential:     e.identities.RehashIfNeeded,
			Warn:                 warn,
			MetricInc:            metricInc,
			EmitAudit:            e.emitAudit,
			Metrics: flows.LoginMetrics{
				LoginSuccess:   int(MetricLoginSuccess),
				LoginFailure:   int(MetricLoginFailure),
				SessionCreated: int(MetricSessionCreated),
			},
			Events: flows.LoginEvents{
				LoginSuccess: auditEventLoginSuccess,
				LoginFailure: auditEventLoginFailure,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				AccountInactive:    ErrAccountInactive,
				EmailUnverified:    ErrEmailUnverified,
			},
		},
		Validate: flows.ValidateDeps{
			Cache:  e.sessionStore,
			Owners: e.store,
			Tokens: e.tokens,
			Warn:   warn,
		},
		Logout: flows.LogoutDeps{
			Cache:  e.sessionStore,
			Owners: e.store,
			Warn:   warn,
			Errors: flows.LogoutErrors{SessionNotOwned: ErrSessionExpiredOrRevoked},
		},
		Refresh: flows.RefreshDeps{
			IssueSession: issue,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess: int(MetricRefreshSuccess),
				RefreshFailure: int(MetricRefreshFailure),
				SessionCreated: int(MetricSessionCreated),
			},
			Events: flows.RefreshEvents{
				RefreshSuccess: auditEventRefreshSuccess,
				RefreshFailure: auditEventRefreshFailure,
			},
		},
		EmailVerification: flows.EmailVerificationDeps{
			Enabled:           e.config.EmailVerification.Enabled,
			VerificationTTL:   e.config.EmailVerification.VerificationTTL,
			MaxAttempts:       e.config.EmailVerification.MaxAttempts,
			FindUserByEmail:   findUser,
			MarkVerified:      markVerified,
			IssueSession:      issue,
			GenerateChallenge: generateChallenge,
			ParseChallenge:    parseChallenge,
			SaveChallenge:     e.saveChallenge,
			ConsumeChallenge:  e.consumeChallenge,
			MapStoreError:     mapVerificationStoreError,
			MetricInc:         metricInc,
			EmitAudit:         e.emitAudit,
			Metrics: flows.EmailVerificationMetrics{
				EmailVerificationRequest: int(MetricEmailVerificationRequest),
				EmailVerificationSuccess: int(MetricEmailVerificationSuccess),
				EmailVerificationFailure: int(MetricEmailVerificationFailure),
				SessionCreated:           int(MetricSessionCreated),
			},
			Events: flows.EmailVerificationEvents{
				EmailVerificationRequest: auditEventEmailVerificationRequest,
				EmailVerificationConfirm: auditEventEmailVerificationConfirm,
			},
			Errors: flows.EmailVerificationErrors{
				EngineNotReady:               ErrEngineNotReady,
				EmailVerificationDisabled:    ErrEmailVerificationDisabled,
				EmailVerificationInvalid:     ErrEmailVerificationInvalid,
				EmailVerificationUnavailable: ErrEmailVerificationUnavailable,
				AccountInactive:              ErrAccountInactive,
			},
		},
	}
	return deps
}
