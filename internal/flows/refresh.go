package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// RefreshFailure names the branch a refresh ended in.
type RefreshFailure int

const (
	RefreshOK RefreshFailure = iota
	RefreshBadToken
	RefreshExpiredToken
	RefreshSessionExpired
	RefreshDeactivated
	RefreshDependency
)

// RefreshOutcome is the result of RunRefresh.
type RefreshOutcome struct {
	Failure RefreshFailure
	Err     error
	Claims  *token.Claims
	Session *session.Session
	Access  token.Issued
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	TouchOnRefresh bool
	Now            func() time.Time

	VerifyToken          func(ctx context.Context, refreshToken string) (*token.Claims, error)
	FindByRefreshTokenID func(ctx context.Context, jti string) (*session.Session, error)
	RevokeSession        func(ctx context.Context, sessionID, reason string) error
	// LoadSubject returns fresh claims for the user and whether the account
	// may still hold sessions.
	LoadSubject func(ctx context.Context, userID string) (token.Subject, bool, error)
	IssueAccess func(sub token.Subject, sessionID, deviceID string) (token.Issued, error)
	Touch       func(ctx context.Context, sessionID string) error
	Warn        func(msg string, args ...any)
}

// RunRefresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated. A session that is revoked, expired or gone
// ends the chain with RefreshSessionExpired even when the token is still
// validly signed.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshOutcome {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	claims, err := deps.VerifyToken(ctx, refreshToken)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrRevoked):
		return RefreshOutcome{Failure: RefreshSessionExpired, Err: err}
	case errors.Is(err, token.ErrExpired):
		return RefreshOutcome{Failure: RefreshExpiredToken, Err: err}
	case errors.Is(err, token.ErrRevocationUnavailable):
		return RefreshOutcome{Failure: RefreshDependency, Err: err}
	default:
		return RefreshOutcome{Failure: RefreshBadToken, Err: err}
	}

	sess, err := deps.FindByRefreshTokenID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return RefreshOutcome{Failure: RefreshSessionExpired, Err: err, Claims: claims}
		}
		return RefreshOutcome{Failure: RefreshDependency, Err: err, Claims: claims}
	}
	if sess.ID != claims.SessionID || sess.UserID != claims.UserID {
		return RefreshOutcome{Failure: RefreshBadToken, Claims: claims}
	}

	if !sess.Live(deps.Now()) {
		if sess.Active {
			if err := deps.RevokeSession(ctx, sess.ID, session.ReasonSessionExpired); err != nil {
				deps.Warn("revoke expired session failed", "session_id", sess.ID, "err", err)
			}
		}
		return RefreshOutcome{Failure: RefreshSessionExpired, Claims: claims, Session: sess}
	}

	sub, active, err := deps.LoadSubject(ctx, sess.UserID)
	if err != nil {
		return RefreshOutcome{Failure: RefreshDependency, Err: err, Claims: claims, Session: sess}
	}
	if !active {
		if err := deps.RevokeSession(ctx, sess.ID, session.ReasonAccountDeactivated); err != nil {
			deps.Warn("revoke session of inactive account failed", "session_id", sess.ID, "err", err)
		}
		return RefreshOutcome{Failure: RefreshDeactivated, Claims: claims, Session: sess}
	}

	access, err := deps.IssueAccess(sub, sess.ID, sess.DeviceID)
	if err != nil {
		return RefreshOutcome{Failure: RefreshDependency, Err: err, Claims: claims, Session: sess}
	}

	if deps.TouchOnRefresh && deps.Touch != nil {
		if err := deps.Touch(ctx, sess.ID); err != nil {
			deps.Warn("session touch failed", "session_id", sess.ID, "err", err)
		}
	}

	return RefreshOutcome{Failure: RefreshOK, Claims: claims, Session: sess, Access: access}
}
