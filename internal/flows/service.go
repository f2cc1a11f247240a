package flows

import "context"

// Service binds Deps to the flow functions.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Issue.CreateSession != nil && s.deps.Login.LookupUser != nil
}

func (s Service) IssueSession(ctx context.Context, req IssueRequest) (*IssuedSession, error) {
	return RunIssueSession(ctx, req, s.deps.Issue)
}

func (s Service) CheckPassword(ctx context.Context, email, password string) LoginOutcome {
	return RunCheckPassword(ctx, email, password, s.deps.Login)
}

func (s Service) TwoFactor(ctx context.Context, bridgeToken, code string) TwoFactorOutcome {
	return RunTwoFactor(ctx, bridgeToken, code, s.deps.TwoFactor)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshOutcome {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, sessionID, reason string) (bool, error) {
	return RunLogout(ctx, sessionID, reason, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID, exceptSessionID, reason string) (int, error) {
	return RunLogoutAll(ctx, userID, exceptSessionID, reason, s.deps.Logout)
}
