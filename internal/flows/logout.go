package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/session"
)

// LogoutDeps captures revocation dependencies.
type LogoutDeps struct {
	RevokeSession func(ctx context.Context, sessionID, reason string) (bool, error)
	RevokeAll     func(ctx context.Context, userID, exceptSessionID, reason string) (int, error)
	ListActive    func(ctx context.Context, userID string) ([]*session.Session, error)

	// Blacklist records a session id in the revocation index so access
	// tokens already issued for it stop verifying immediately.
	Blacklist    func(ctx context.Context, sessionID string, ttl time.Duration) error
	BlacklistTTL time.Duration
	Warn         func(msg string, args ...any)
}

// RunLogout revokes one session. Revoking an already revoked or unknown
// session is a no-op that reports false.
func RunLogout(ctx context.Context, sessionID, reason string, deps LogoutDeps) (bool, error) {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	changed, err := deps.RevokeSession(ctx, sessionID, reason)
	if err != nil {
		return false, err
	}
	if changed {
		blacklist(ctx, sessionID, deps)
	}
	return changed, nil
}

// RunLogoutAll revokes every live session of userID except exceptSessionID
// and returns how many changed state.
func RunLogoutAll(ctx context.Context, userID, exceptSessionID, reason string, deps LogoutDeps) (int, error) {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	live, err := deps.ListActive(ctx, userID)
	if err != nil {
		return 0, err
	}
	count, err := deps.RevokeAll(ctx, userID, exceptSessionID, reason)
	// RevokeAll may stop partway. Every listed session is blacklisted either
	// way so none of the already revoked ones keeps a working access token.
	for _, sess := range live {
		if sess.ID != exceptSessionID {
			blacklist(ctx, sess.ID, deps)
		}
	}
	if err != nil {
		return count, err
	}
	return count, nil
}

func blacklist(ctx context.Context, sessionID string, deps LogoutDeps) {
	if deps.Blacklist == nil || deps.BlacklistTTL <= 0 {
		return
	}
	if err := deps.Blacklist(ctx, sessionID, deps.BlacklistTTL); err != nil {
		deps.Warn("session blacklist failed", "session_id", sessionID, "err", err)
	}
}
