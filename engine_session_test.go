package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/session"
)

func TestRefreshReissuesAccessWithoutRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "trent@example.com", "password-123")
	res := env.login(t, "trent@example.com", "password-123")
	ctx := context.Background()

	env.clock.Advance(time.Minute)
	first, err := env.engine.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if first.SessionID != res.SessionID || first.AccessToken == "" || first.AccessToken == res.AccessToken {
		t.Fatalf("unexpected refresh result: %+v", first)
	}

	second, err := env.engine.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("expected refresh token reusable, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, second.AccessToken); err != nil {
		t.Fatalf("ValidateAccess of refreshed token failed: %v", err)
	}

	info, err := env.engine.GetSessionInfo(ctx, second.AccessToken)
	if err != nil {
		t.Fatalf("GetSessionInfo failed: %v", err)
	}
	if !info.LastActivityAt.Equal(env.clock.Now()) {
		t.Fatalf("expected session touched at %v, got %v", env.clock.Now(), info.LastActivityAt)
	}
}

func TestRefreshAfterLogoutIsSessionExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "uma@example.com", "password-123")
	res := env.login(t, "uma@example.com", "password-123")
	ctx := context.Background()

	if err := env.engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	_, err := env.engine.Refresh(ctx, res.RefreshToken)
	expectKind(t, err, KindSessionExpired)

	// The access token of the revoked session stops verifying at once.
	_, err = env.engine.ValidateAccess(ctx, res.AccessToken)
	if err == nil {
		t.Fatalf("expected access token of revoked session to fail")
	}
}

func TestRefreshPastSessionLifetimeRevokes(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Session.Lifetime = time.Hour })
	env.register(t, "victor@example.com", "password-123")
	res := env.login(t, "victor@example.com", "password-123")

	env.clock.Advance(2 * time.Hour)
	_, err := env.engine.Refresh(context.Background(), res.RefreshToken)
	expectKind(t, err, KindSessionExpired)
}

func TestRefreshRejectsWrongTokenTypes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "walter@example.com", "password-123")
	res := env.login(t, "walter@example.com", "password-123")
	ctx := context.Background()

	_, err := env.engine.Refresh(ctx, res.AccessToken)
	expectKind(t, err, KindTokenInvalid)

	_, err = env.engine.ValidateAccess(ctx, res.RefreshToken)
	expectKind(t, err, KindTokenInvalid)

	_, err = env.engine.Refresh(ctx, "garbage")
	expectKind(t, err, KindTokenInvalid)

	_, err = env.engine.Refresh(ctx, "")
	expectKind(t, err, KindValidationFailed)
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "xena@example.com", "password-123")
	res := env.login(t, "xena@example.com", "password-123")

	env.clock.Advance(31 * 24 * time.Hour)
	_, err := env.engine.Refresh(context.Background(), res.RefreshToken)
	expectKind(t, err, KindTokenExpired)
}

func TestRefreshDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	uid := env.register(t, "yuri@example.com", "password-123")
	res := env.login(t, "yuri@example.com", "password-123")

	_ = env.users.Deactivate(context.Background(), uid)
	_, err := env.engine.Refresh(context.Background(), res.RefreshToken)
	expectKind(t, err, KindAccountDeactivated)

	_, err = env.engine.Refresh(context.Background(), res.RefreshToken)
	expectKind(t, err, KindSessionExpired)
}

func TestConcurrentLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "zed@example.com", "password-123")
	res := env.login(t, "zed@example.com", "password-123")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.engine.Logout(context.Background(), res.SessionID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("logout %d failed: %v", i, err)
		}
	}
	if got := env.engine.Metrics().Value(MetricLogout); got != 1 {
		t.Fatalf("expected exactly one state change, got %d", got)
	}
	if err := env.engine.Logout(context.Background(), "unknown-session"); err != nil {
		t.Fatalf("expected unknown session logout to be a no-op, got %v", err)
	}
}

func TestLogoutAllKeepsException(t *testing.T) {
	env := newTestEnv(t, nil)
	uid := env.register(t, "amy@example.com", "password-123")
	ctx := context.Background()

	keep := env.login(t, "amy@example.com", "password-123")
	other1 := env.login(t, "amy@example.com", "password-123")
	other2 := env.login(t, "amy@example.com", "password-123")

	n, err := env.engine.LogoutAll(ctx, uid, keep.SessionID)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	if _, err := env.engine.ValidateAccess(ctx, keep.AccessToken); err != nil {
		t.Fatalf("expected kept session to remain valid: %v", err)
	}
	for _, r := range []*LoginResult{other1, other2} {
		if _, err := env.engine.Refresh(ctx, r.RefreshToken); KindOf(err) != KindSessionExpired {
			t.Fatalf("expected SESSION_EXPIRED for revoked session, got %v", err)
		}
	}

	live, err := env.engine.ListSessions(ctx, uid)
	if err != nil || len(live) != 1 || live[0].SessionID != keep.SessionID {
		t.Fatalf("expected only kept session live, got %+v %v", live, err)
	}

	n, err = env.engine.LogoutAll(ctx, uid, "")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 revoked on second pass, got %d %v", n, err)
	}
}

func TestSessionRevocationReasons(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "bea@example.com", "password-123")
	res := env.login(t, "bea@example.com", "password-123")
	ctx := context.Background()

	if err := env.engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	store := session.NewRedisStore(env.rdb, "as", session.WithClock(env.clock.Now))
	sess, err := store.FindByRefreshTokenID(ctx, mustClaimsID(t, env, res.RefreshToken))
	if err != nil {
		t.Fatalf("FindByRefreshTokenID failed: %v", err)
	}
	if sess.Active || sess.RevokedReason != session.ReasonUserLogout {
		t.Fatalf("expected user_logout revocation, got %+v", sess)
	}
	if _, err := store.FindActive(ctx, res.SessionID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected revoked session not active, got %v", err)
	}
}

func mustClaimsID(t *testing.T, env *testEnv, tok string) string {
	t.Helper()
	claims, err := env.engine.tokens.Parse(tok, "refresh")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return claims.ID
}
