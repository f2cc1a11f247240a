package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/token"
)

var (
	errNotFound = errors.New("not found")
	errDown     = errors.New("store down")
	fixedNow    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type loginHarness struct {
	user      *LoginUser
	lookupErr error
	dummy     int
	failures  int
	resets    int
	rehashed  int
}

func (h *loginHarness) deps() LoginDeps {
	policy := lockout.Policy{MaxAttempts: 3, Duration: 10 * time.Minute}
	return LoginDeps{
		Policy: policy,
		Now:    func() time.Time { return fixedNow },
		LookupUser: func(context.Context, string) (*LoginUser, error) {
			if h.lookupErr != nil {
				return nil, h.lookupErr
			}
			return h.user, nil
		},
		VerifyPassword: func(password, hash string) (bool, error) { return password == hash, nil },
		DummyVerify:    func(string) { h.dummy++ },
		RehashPassword: func(context.Context, string, string, string) { h.rehashed++ },
		RecordFailure: func(_ context.Context, _ string, p lockout.Policy, now time.Time) (lockout.State, error) {
			h.failures++
			h.user.Lockout = p.Fail(h.user.Lockout, now)
			return h.user.Lockout, nil
		},
		ResetFailures: func(context.Context, string) error {
			h.resets++
			h.user.Lockout = lockout.State{}
			return nil
		},
		UserNotFound: errNotFound,
	}
}

func newLoginHarness() *loginHarness {
	return &loginHarness{user: &LoginUser{
		Subject:      token.Subject{UserID: "u1", Email: "a@example.com", EmailVerified: true},
		PasswordHash: "secret",
		Active:       true,
	}}
}

func TestCheckPasswordUnknownUserBurnsDummyHash(t *testing.T) {
	h := newLoginHarness()
	h.lookupErr = errNotFound

	out := RunCheckPassword(context.Background(), "a@example.com", "x", h.deps())
	assert.Equal(t, LoginUnknownUser, out.Failure)
	assert.Equal(t, 1, h.dummy)
	assert.Zero(t, h.failures)
}

func TestCheckPasswordLookupOutage(t *testing.T) {
	h := newLoginHarness()
	h.lookupErr = errDown

	out := RunCheckPassword(context.Background(), "a@example.com", "x", h.deps())
	assert.Equal(t, LoginDependency, out.Failure)
	assert.ErrorIs(t, out.Err, errDown)
}

func TestCheckPasswordLocksOnThreshold(t *testing.T) {
	h := newLoginHarness()
	deps := h.deps()

	for i := 1; i <= 2; i++ {
		out := RunCheckPassword(context.Background(), "a@example.com", "wrong", deps)
		require.Equal(t, LoginBadPassword, out.Failure)
		assert.False(t, out.JustLocked)
		assert.Equal(t, i, out.Lockout.FailedAttempts)
	}

	out := RunCheckPassword(context.Background(), "a@example.com", "wrong", deps)
	require.Equal(t, LoginBadPassword, out.Failure)
	assert.True(t, out.JustLocked)
	assert.Equal(t, fixedNow.Add(10*time.Minute), out.Lockout.LockedUntil)

	out = RunCheckPassword(context.Background(), "a@example.com", "secret", deps)
	assert.Equal(t, LoginLocked, out.Failure)
	assert.Equal(t, 3, h.failures)
}

func TestCheckPasswordSuccessResetsCounter(t *testing.T) {
	h := newLoginHarness()
	h.user.Lockout = lockout.State{FailedAttempts: 2}
	h.user.Subject.TwoFactorEnabled = true

	out := RunCheckPassword(context.Background(), "a@example.com", "secret", h.deps())
	assert.Equal(t, LoginOK, out.Failure)
	assert.True(t, out.TwoFactorRequired)
	assert.Equal(t, 1, h.resets)
	assert.Equal(t, 1, h.rehashed)
}

func TestCheckPasswordBranchOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LoginUser, *LoginDeps)
		pw     string
		want   LoginFailure
	}{
		{"deactivated before password", func(u *LoginUser, _ *LoginDeps) { u.Active = false }, "wrong", LoginDeactivated},
		{"locked before deactivated", func(u *LoginUser, _ *LoginDeps) {
			u.Active = false
			u.Lockout = lockout.State{FailedAttempts: 3, LockedUntil: fixedNow.Add(time.Minute)}
		}, "secret", LoginLocked},
		{"elapsed lock is open", func(u *LoginUser, _ *LoginDeps) {
			u.Lockout = lockout.State{FailedAttempts: 3, LockedUntil: fixedNow.Add(-time.Minute)}
		}, "secret", LoginOK},
		{"no password", func(u *LoginUser, _ *LoginDeps) { u.PasswordHash = "" }, "secret", LoginNoPassword},
		{"verification required", func(u *LoginUser, d *LoginDeps) {
			u.Subject.EmailVerified = false
			d.RequireVerified = true
		}, "secret", LoginEmailNotVerified},
		{"unverified allowed", func(u *LoginUser, _ *LoginDeps) { u.Subject.EmailVerified = false }, "secret", LoginOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newLoginHarness()
			deps := h.deps()
			tc.mutate(h.user, &deps)
			out := RunCheckPassword(context.Background(), "a@example.com", tc.pw, deps)
			assert.Equal(t, tc.want, out.Failure)
		})
	}
}

func TestCheckPasswordUnverifiedDoesNotCountFailure(t *testing.T) {
	h := newLoginHarness()
	h.user.Subject.EmailVerified = false
	deps := h.deps()
	deps.RequireVerified = true

	out := RunCheckPassword(context.Background(), "a@example.com", "secret", deps)
	assert.Equal(t, LoginEmailNotVerified, out.Failure)
	assert.Zero(t, h.failures)
}
