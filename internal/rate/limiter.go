package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is one named budget: at most Limit hits per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Default rules for the credential endpoints.
var (
	LoginRule          = Rule{Name: "login", Limit: 20, Window: time.Minute}
	RegisterRule       = Rule{Name: "register", Limit: 5, Window: time.Hour}
	PasswordForgotRule = Rule{Name: "pwforgot", Limit: 5, Window: 15 * time.Minute}
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the current window when the request
	// was refused.
	RetryAfter time.Duration
}

// Limiter enforces Rules with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Limiter using prefix for its keys (default "rl").
func New(client redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{redis: client, prefix: prefix}
}

// Allow counts one hit against rule for ip. An empty ip is never limited.
func (l *Limiter) Allow(ctx context.Context, rule Rule, ip string) (Decision, error) {
	if ip == "" || rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true, Remaining: rule.Limit}, nil
	}
	key := l.key(rule, ip)

	count, err := l.incrementWithTTL(ctx, key, rule.Window)
	if err != nil {
		return Decision{}, err
	}
	if count <= int64(rule.Limit) {
		return Decision{Allowed: true, Remaining: rule.Limit - int(count)}, nil
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = rule.Window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, ErrRateLimited
}

// Reset clears the counter of rule for ip.
func (l *Limiter) Reset(ctx context.Context, rule Rule, ip string) error {
	if err := l.redis.Del(ctx, l.key(rule, ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(rule Rule, ip string) string {
	return l.prefix + ":" + rule.Name + ":" + ip
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
