package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/risk"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// RequestPasswordReset delivers a reset token to the account's address. It
// returns nil for unknown and inactive addresses so the result never
// reveals whether an account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := e.startSpan(ctx, "RequestPasswordReset")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	addr, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetRequest)

	user, err := e.getUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.audit(ctx, auditRecord{action: risk.ActionPasswordResetRequest, reason: "unknown_email"})
			return nil
		}
		return dependencyError(err)
	}
	if !user.Active || user.Deleted() {
		e.audit(ctx, auditRecord{action: risk.ActionPasswordResetRequest, userID: user.ID, reason: "inactive_account"})
		return nil
	}

	issued, err := e.tokens.IssuePasswordReset(user.ID, user.Email)
	if err != nil {
		return dependencyError(err)
	}
	e.notify(ctx, Message{
		Kind:   MessagePasswordReset,
		To:     user.Email,
		UserID: user.ID,
		Token:  issued.Token,
	})
	e.audit(ctx, auditRecord{action: risk.ActionPasswordResetRequest, userID: user.ID})
	return nil
}

// ResetPassword redeems a reset token. The token is single use. On success
// the hash is replaced, lockout state is cleared and every session of the
// user is revoked.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNonEmpty("reset token", resetToken); err != nil {
		return err
	}
	if err := e.checkPassword(newPassword); err != nil {
		return err
	}

	var userID string
	fail := func(err error, reason string) error {
		e.metrics.Inc(MetricPasswordResetFailure)
		e.audit(ctx, auditRecord{action: risk.ActionPasswordReset, userID: userID, err: err, reason: reason})
		return err
	}

	claims, err := e.verifyToken(ctx, resetToken, token.TypePasswordReset)
	if err != nil {
		return fail(tokenError(err), "invalid_token")
	}
	userID = claims.UserID

	user, err := e.getUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fail(ErrTokenInvalid, "unknown_user")
		}
		return fail(dependencyError(err), "dependency")
	}
	if user.Email != claims.Email {
		return fail(ErrTokenInvalid, "email_changed")
	}
	if !user.Active || user.Deleted() {
		return fail(ErrAccountDeactivated, "")
	}

	first, err := e.consumeToken(ctx, claims)
	if err != nil {
		return fail(tokenError(err), "consume")
	}
	if !first {
		return fail(ErrTokenInvalid, "token_replayed")
	}

	// The token stays claimed while the password and sessions change and is
	// handed back if either step fails, so the same link can be retried.
	if err := e.replacePassword(ctx, user.ID, newPassword); err != nil {
		e.releaseToken(ctx, claims)
		return fail(err, "dependency")
	}
	if _, err := e.revokeAllSessions(ctx, user.ID, "", session.ReasonPasswordReset); err != nil {
		e.releaseToken(ctx, claims)
		return fail(err, "revoke_sessions")
	}

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.audit(ctx, auditRecord{action: risk.ActionPasswordReset, userID: user.ID})
	e.notify(ctx, Message{
		Kind:   MessageSecurityAlert,
		To:     user.Email,
		UserID: user.ID,
		Data:   map[string]string{"event": "password_reset"},
	})
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one. Every session of the user is revoked, including
// the one the request came from, so the caller must log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "ChangePassword")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNonEmpty("user id", userID); err != nil {
		return err
	}
	if err := requireNonEmpty("current password", oldPassword); err != nil {
		return err
	}
	if err := e.checkPassword(newPassword); err != nil {
		return err
	}
	if oldPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the current one", ErrValidation)
	}

	fail := func(err error, reason string) error {
		e.audit(ctx, auditRecord{action: risk.ActionPasswordChanged, userID: userID, err: err, reason: reason})
		return err
	}

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return userError(err)
	}
	if !user.Active || user.Deleted() {
		return fail(ErrAccountDeactivated, "")
	}
	policy := e.config.Lockout.policy()
	now := e.now()
	if policy.Status(user.Lockout(), now) == lockout.Locked {
		return fail(ErrAccountLocked, "account_locked")
	}
	if user.PasswordHash == "" {
		e.dummyVerify(oldPassword)
		return fail(ErrInvalidCredentials, "no_password")
	}
	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return fail(dependencyError(err), "verify")
	}
	if !ok {
		// A wrong current password counts toward the same lockout as login.
		after, err := e.recordFailure(ctx, user.ID, policy, now)
		if err != nil {
			return fail(err, "dependency")
		}
		if lockout.JustLocked(user.Lockout(), after) {
			e.onAccountLocked(ctx, user.ID, user.Email, after)
		}
		return fail(ErrInvalidCredentials, "bad_password")
	}

	if err := e.replacePassword(ctx, user.ID, newPassword); err != nil {
		return fail(err, "dependency")
	}
	if _, err := e.revokeAllSessions(ctx, user.ID, "", session.ReasonPasswordChanged); err != nil {
		return fail(err, "revoke_sessions")
	}

	e.metrics.Inc(MetricPasswordChanged)
	e.audit(ctx, auditRecord{action: risk.ActionPasswordChanged, userID: user.ID})
	e.notify(ctx, Message{
		Kind:   MessageSecurityAlert,
		To:     user.Email,
		UserID: user.ID,
		Data:   map[string]string{"event": "password_changed"},
	})
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, userID string, policy lockout.Policy, now time.Time) (lockout.State, error) {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	st, err := e.users.RecordLoginFailure(ctx, userID, policy, now)
	if err != nil {
		return lockout.State{}, dependencyError(err)
	}
	return st, nil
}

func (e *Engine) replacePassword(ctx context.Context, userID, pw string) error {
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return dependencyError(err)
	}
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	if err := e.users.UpdatePassword(ctx, userID, hash); err != nil {
		return dependencyError(err)
	}
	return nil
}
