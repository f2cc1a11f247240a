package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/risk"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// Refresh exchanges a refresh token for a new access token. The refresh
// token is not rotated. A revoked, expired or missing session yields
// SESSION_EXPIRED even when the refresh token itself still verifies.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (res *RefreshResult, err error) {
	ctx, span := e.startSpan(ctx, "Refresh")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("refresh token", refreshToken); err != nil {
		return nil, err
	}

	out := e.flows.Refresh(ctx, refreshToken)

	var userID, sessionID string
	if out.Claims != nil {
		userID, sessionID = out.Claims.UserID, out.Claims.SessionID
	}

	switch out.Failure {
	case flows.RefreshOK:
	case flows.RefreshBadToken:
		err = ErrTokenInvalid
	case flows.RefreshExpiredToken:
		err = ErrTokenExpired
	case flows.RefreshSessionExpired:
		err = ErrSessionExpired
	case flows.RefreshDeactivated:
		err = ErrAccountDeactivated
	default:
		err = dependencyError(out.Err)
	}
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.audit(ctx, auditRecord{action: risk.ActionRefreshRejected, userID: userID, sessionID: sessionID, err: err})
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.audit(ctx, auditRecord{action: risk.ActionTokenRefresh, userID: userID, sessionID: sessionID})

	return &RefreshResult{
		SessionID:       out.Session.ID,
		AccessToken:     out.Access.Token,
		AccessExpiresAt: out.Access.ExpiresAt,
	}, nil
}

// Logout revokes one session with reason user_logout. It is idempotent:
// logging out an already revoked or unknown session succeeds without
// effect.
func (e *Engine) Logout(ctx context.Context, sessionID string) (err error) {
	ctx, span := e.startSpan(ctx, "Logout")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNonEmpty("session id", sessionID); err != nil {
		return err
	}

	var userID string
	fctx, cancel := e.depCtx(ctx)
	if sess, ferr := e.sessions.FindActive(fctx, sessionID); ferr == nil {
		userID = sess.UserID
	}
	cancel()

	changed, err := e.flows.Logout(ctx, sessionID, session.ReasonUserLogout)
	if err != nil {
		return storeError(err)
	}
	if !changed {
		return nil
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricSessionRevoked)
	e.audit(ctx, auditRecord{action: risk.ActionLogout, userID: userID, sessionID: sessionID})
	return nil
}

// LogoutAll revokes every live session of userID except exceptSessionID,
// which may be empty, and returns how many sessions were revoked.
func (e *Engine) LogoutAll(ctx context.Context, userID, exceptSessionID string) (n int, err error) {
	ctx, span := e.startSpan(ctx, "LogoutAll")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := requireNonEmpty("user id", userID); err != nil {
		return 0, err
	}

	n, err = e.revokeAllSessions(ctx, userID, exceptSessionID, session.ReasonLogoutAll)
	if err != nil {
		return n, err
	}

	e.metrics.Inc(MetricLogoutAll)
	e.audit(ctx, auditRecord{
		action:    risk.ActionLogoutAll,
		userID:    userID,
		sessionID: exceptSessionID,
		metadata:  map[string]string{"revoked": strconv.Itoa(n)},
	})
	return n, nil
}

// GetSessionInfo returns the live session behind an access token.
func (e *Engine) GetSessionInfo(ctx context.Context, accessToken string) (info *SessionInfo, err error) {
	ctx, span := e.startSpan(ctx, "GetSessionInfo")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}
	_, sess, err := e.authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// ValidateAccess verifies an access token and checks that its session is
// still live. Guest, refresh and every other token type are rejected.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (p *Principal, err error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, _, err := e.authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:           claims.UserID,
		SessionID:        claims.SessionID,
		DeviceID:         claims.DeviceID,
		Role:             Role(claims.Role),
		Tier:             claims.Tier,
		EmailVerified:    claims.EmailVerified,
		TwoFactorEnabled: claims.TwoFactor,
	}, nil
}

// ListSessions returns the live sessions of userID.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("user id", userID); err != nil {
		return nil, err
	}
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	live, err := e.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]SessionInfo, 0, len(live))
	for _, s := range live {
		out = append(out, *sessionInfo(s))
	}
	return out, nil
}

func (e *Engine) authenticate(ctx context.Context, accessToken string) (*token.Claims, *session.Session, error) {
	if err := requireNonEmpty("access token", accessToken); err != nil {
		return nil, nil, err
	}
	claims, err := e.verifyToken(ctx, accessToken, token.TypeAccess)
	if err != nil {
		return nil, nil, tokenError(err)
	}

	fctx, cancel := e.depCtx(ctx)
	defer cancel()
	sess, err := e.sessions.FindActive(fctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, dependencyError(err)
	}
	if sess.UserID != claims.UserID {
		return nil, nil, ErrTokenInvalid
	}
	return claims, sess, nil
}

func sessionInfo(s *session.Session) *SessionInfo {
	return &SessionInfo{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Type:           s.Type,
		Device:         s.Device,
		IP:             s.IP,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		CSRFToken:      s.CSRFToken,
	}
}
