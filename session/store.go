package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no live session matches the lookup.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session backend unavailable")
	// ErrInvalid is returned for sessions missing required fields.
	ErrInvalid = errors.New("invalid session")
)

// Store is the persistence contract for sessions.
//
// Implementations must make Revoke idempotent and must enforce expiry in
// FindActive at read time.
type Store interface {
	// Create persists a new session and returns the stored copy.
	Create(ctx context.Context, sess *Session) (*Session, error)
	// FindActive returns the session if it is active and unexpired, or ErrNotFound.
	FindActive(ctx context.Context, sessionID string) (*Session, error)
	// FindByRefreshTokenID returns the session owning jti regardless of its
	// state, so callers can tell a revoked session from an unknown token.
	FindByRefreshTokenID(ctx context.Context, jti string) (*Session, error)
	// Touch records activity on a live session.
	Touch(ctx context.Context, sessionID string) error
	// Revoke terminates the session. It reports whether this call changed its
	// state; revoking an already revoked or missing session is not an error.
	Revoke(ctx context.Context, sessionID, reason string) (bool, error)
	// RevokeAll terminates every live session of userID except exceptID and
	// returns how many were revoked.
	RevokeAll(ctx context.Context, userID, exceptID, reason string) (int, error)
	// ListActive returns the live sessions of userID.
	ListActive(ctx context.Context, userID string) ([]*Session, error)
}

// Validate checks the fields every store requires before Create.
func Validate(sess *Session) error {
	if sess == nil || sess.ID == "" || sess.ExpiresAt.IsZero() {
		return ErrInvalid
	}
	switch sess.Type {
	case TypeGuest:
		if sess.UserID != "" {
			return ErrInvalid
		}
	case TypeAuthenticated:
		if sess.UserID == "" {
			return ErrInvalid
		}
	default:
		return ErrInvalid
	}
	return nil
}
