package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ""), mr
}

func TestAllowFixedWindow(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "login", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, rule, "203.0.113.9")
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: expected allowed, got %+v %v", i+1, d, err)
		}
		if d.Remaining != 2-i {
			t.Fatalf("hit %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d, err := l.Allow(ctx, rule, "203.0.113.9")
	if !errors.Is(err, ErrRateLimited) || d.Allowed {
		t.Fatalf("expected rate limited, got %+v %v", d, err)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry-after %v", d.RetryAfter)
	}

	if _, err := l.Allow(ctx, rule, "198.51.100.1"); err != nil {
		t.Fatalf("expected other IP to have its own budget: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if _, err := l.Allow(ctx, rule, "203.0.113.9"); err != nil {
		t.Fatalf("expected new window after expiry: %v", err)
	}
}

func TestAllowSkipsEmptyIPAndDisabledRules(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Allow(ctx, Rule{Name: "x", Limit: 1, Window: time.Minute}, ""); err != nil {
			t.Fatalf("empty IP must not be limited: %v", err)
		}
		if _, err := l.Allow(ctx, Rule{Name: "x", Limit: 0, Window: time.Minute}, "1.2.3.4"); err != nil {
			t.Fatalf("zero limit disables the rule: %v", err)
		}
	}
}

func TestResetClearsCounter(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "register", Limit: 1, Window: time.Hour}

	if _, err := l.Allow(ctx, rule, "1.2.3.4"); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	if _, err := l.Allow(ctx, rule, "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := l.Reset(ctx, rule, "1.2.3.4"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := l.Allow(ctx, rule, "1.2.3.4"); err != nil {
		t.Fatalf("expected allowed after reset: %v", err)
	}
}

func TestAllowRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	_, err := l.Allow(context.Background(), LoginRule, "1.2.3.4")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
