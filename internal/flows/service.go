package flows

import (
	"context"

	"github.com/MrEthical07/gatekeeper/store"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring. Flows that
// open sessions default to RunIssueSession over deps.Session.
func New(deps Deps) Service {
	s := Service{deps: deps}
	issue := s.IssueSession
	if s.deps.Login.IssueSession == nil {
		s.deps.Login.IssueSession = issue
	}
	if s.deps.Refresh.IssueSession == nil {
		s.deps.Refresh.IssueSession = issue
	}
	if s.deps.EmailVerification.IssueSession == nil {
		s.deps.EmailVerification.IssueSession = issue
	}
	s.deps.Refresh.Session = deps.Session
	return s
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Tokens != nil && s.deps.Session.Cache != nil
}

func (s Service) IssueSession(ctx context.Context, user *store.User) (*IssuedSession, error) {
	return RunIssueSession(ctx, user, s.deps.Session)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Validate(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, userID, sessionID string) error {
	return RunLogout(ctx, userID, sessionID, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return RunRevokeSession(ctx, userID, sessionID, s.deps.Logout)
}

func (s Service) ListSessions(ctx context.Context, userID string) ([]*SessionInfo, error) {
	return RunListSessions(ctx, userID, s.deps.Logout)
}

func (s Service) Refresh(ctx context.Context, userID, oldSessionID string) (*RefreshResult, error) {
	return RunRefresh(ctx, userID, oldSessionID, s.deps.Refresh)
}

func (s Service) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	return RunRequestEmailVerification(ctx, email, s.deps.EmailVerification)
}

func (s Service) ConfirmEmailVerification(ctx context.Context, token string) (*LoginResult, error) {
	return RunConfirmEmailVerification(ctx, token, s.deps.EmailVerification)
}
