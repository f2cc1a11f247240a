package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/token"
)

// LoginUser is the flow-local view of a user record.
type LoginUser struct {
	Subject         token.Subject
	PasswordHash    string
	TwoFactorSecret string
	Active          bool
	Lockout         lockout.State
}

// LoginFailure names the branch a password check ended in.
type LoginFailure int

const (
	LoginOK LoginFailure = iota
	LoginUnknownUser
	LoginNoPassword
	LoginLocked
	LoginDeactivated
	LoginBadPassword
	LoginEmailNotVerified
	LoginDependency
)

// LoginOutcome is the result of RunCheckPassword.
type LoginOutcome struct {
	Failure LoginFailure
	Err     error
	User    *LoginUser
	// Lockout is the state after this attempt.
	Lockout lockout.State
	// JustLocked is set on the attempt that crossed the threshold.
	JustLocked bool
	// TwoFactorRequired is set on success when the user has 2FA enabled.
	TwoFactorRequired bool
}

// LoginDeps captures password-step dependencies.
type LoginDeps struct {
	Policy          lockout.Policy
	RequireVerified bool
	Now             func() time.Time

	LookupUser     func(ctx context.Context, email string) (*LoginUser, error)
	VerifyPassword func(password, hash string) (bool, error)
	// DummyVerify burns comparable time when no hash is available.
	DummyVerify func(password string)
	// RehashPassword upgrades a stale hash after a successful check. It is
	// best effort and may be nil.
	RehashPassword func(ctx context.Context, userID, password, hash string)

	RecordFailure func(ctx context.Context, userID string, policy lockout.Policy, now time.Time) (lockout.State, error)
	ResetFailures func(ctx context.Context, userID string) error

	UserNotFound error
}

// RunCheckPassword walks the password step of login: lookup, lockout,
// active flag, password, counter update and verification requirement.
func RunCheckPassword(ctx context.Context, email, password string, deps LoginDeps) LoginOutcome {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DummyVerify == nil {
		deps.DummyVerify = func(string) {}
	}
	now := deps.Now()

	user, err := deps.LookupUser(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			deps.DummyVerify(password)
			return LoginOutcome{Failure: LoginUnknownUser}
		}
		return LoginOutcome{Failure: LoginDependency, Err: err}
	}

	if deps.Policy.Status(user.Lockout, now) == lockout.Locked {
		return LoginOutcome{Failure: LoginLocked, User: user, Lockout: user.Lockout}
	}
	if !user.Active {
		return LoginOutcome{Failure: LoginDeactivated, User: user, Lockout: user.Lockout}
	}
	if user.PasswordHash == "" {
		deps.DummyVerify(password)
		return LoginOutcome{Failure: LoginNoPassword, User: user, Lockout: user.Lockout}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginOutcome{Failure: LoginDependency, Err: err, User: user}
	}
	if !ok {
		after, err := deps.RecordFailure(ctx, user.Subject.UserID, deps.Policy, now)
		if err != nil {
			return LoginOutcome{Failure: LoginDependency, Err: err, User: user}
		}
		return LoginOutcome{
			Failure:    LoginBadPassword,
			User:       user,
			Lockout:    after,
			JustLocked: lockout.JustLocked(user.Lockout, after),
		}
	}

	if !user.Lockout.Clean() {
		if err := deps.ResetFailures(ctx, user.Subject.UserID); err != nil {
			return LoginOutcome{Failure: LoginDependency, Err: err, User: user}
		}
	}
	if deps.RehashPassword != nil {
		deps.RehashPassword(ctx, user.Subject.UserID, password, user.PasswordHash)
	}

	if deps.RequireVerified && !user.Subject.EmailVerified {
		return LoginOutcome{Failure: LoginEmailNotVerified, User: user}
	}

	return LoginOutcome{
		Failure:           LoginOK,
		User:              user,
		TwoFactorRequired: user.Subject.TwoFactorEnabled,
	}
}
