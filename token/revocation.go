package token

import (
	"context"
	"time"
)

// RevocationIndex is the shared, TTL-bounded blacklist consulted on every
// verification. Implementations must be visible to all verifying processes.
type RevocationIndex interface {
	// Revoke records key as revoked until ttl elapses.
	Revoke(ctx context.Context, key string, ttl time.Duration) error
	// IsRevoked reports whether key is currently revoked.
	IsRevoked(ctx context.Context, key string) (bool, error)
	// Consume atomically revokes key and reports whether this call was the
	// first to do so.
	Consume(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release removes key, undoing a Consume whose follow-up work failed.
	Release(ctx context.Context, key string) error
}

// JTIKey is the revocation key for a single token.
func JTIKey(jti string) string { return "jti:" + jti }

// SessionKey is the revocation key covering every token of a session.
func SessionKey(sessionID string) string { return "sid:" + sessionID }
