package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisIndex(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return NewRedis(rdb), mr
}

func TestRedisRevokeExpiresWithTTL(t *testing.T) {
	idx, mr := newRedisIndex(t)
	ctx := context.Background()

	if err := idx.Revoke(ctx, "jti:a", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err := idx.IsRevoked(ctx, "jti:a")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v err=%v", revoked, err)
	}
	if ttl := mr.TTL("trl:jti:a"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)

	revoked, err = idx.IsRevoked(ctx, "jti:a")
	if err != nil || revoked {
		t.Fatalf("expected entry to expire, got %v err=%v", revoked, err)
	}
}

func TestRedisConsumeFirstUseWins(t *testing.T) {
	idx, _ := newRedisIndex(t)
	ctx := context.Background()

	first, err := idx.Consume(ctx, "jti:b", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first consume to win, got %v err=%v", first, err)
	}
	second, err := idx.Consume(ctx, "jti:b", time.Minute)
	if err != nil || second {
		t.Fatalf("expected second consume to lose, got %v err=%v", second, err)
	}
}

func TestReleaseReopensConsume(t *testing.T) {
	idx, _ := newRedisIndex(t)
	mem := NewMemory()
	ctx := context.Background()

	for name, index := range map[string]interface {
		Consume(context.Context, string, time.Duration) (bool, error)
		Release(context.Context, string) error
	}{"redis": idx, "memory": mem} {
		if first, err := index.Consume(ctx, "jti:r", time.Minute); err != nil || !first {
			t.Fatalf("%s: expected first consume to win, got %v err=%v", name, first, err)
		}
		if err := index.Release(ctx, "jti:r"); err != nil {
			t.Fatalf("%s: Release: %v", name, err)
		}
		if again, err := index.Consume(ctx, "jti:r", time.Minute); err != nil || !again {
			t.Fatalf("%s: expected consume after release to win, got %v err=%v", name, again, err)
		}
	}
}

func TestRedisUnavailable(t *testing.T) {
	idx, mr := newRedisIndex(t)
	mr.Close()

	if _, err := idx.IsRevoked(context.Background(), "jti:c"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestMemoryIndex(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	idx := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = idx.Revoke(ctx, "sid:s1", 10*time.Second)
	if ok, _ := idx.IsRevoked(ctx, "sid:s1"); !ok {
		t.Fatal("expected revoked")
	}
	now = now.Add(11 * time.Second)
	if ok, _ := idx.IsRevoked(ctx, "sid:s1"); ok {
		t.Fatal("expected expiry")
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d", idx.Len())
	}
}
