package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/risk"
	"github.com/MrEthical07/authcore/token"
)

// VerifyEmail redeems an email verification token. It is idempotent: a
// token for an already verified address succeeds again until it expires.
// A token issued for an address the account no longer has is rejected.
func (e *Engine) VerifyEmail(ctx context.Context, verificationToken string) (err error) {
	ctx, span := e.startSpan(ctx, "VerifyEmail")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNonEmpty("verification token", verificationToken); err != nil {
		return err
	}

	claims, err := e.verifyToken(ctx, verificationToken, token.TypeEmailVerification)
	if err != nil {
		err = tokenError(err)
		e.audit(ctx, auditRecord{action: risk.ActionEmailVerified, err: err, reason: "invalid_token"})
		return err
	}

	user, err := e.getUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return dependencyError(err)
	}
	if user.Email != claims.Email {
		e.audit(ctx, auditRecord{action: risk.ActionEmailVerified, userID: user.ID, err: ErrTokenInvalid, reason: "email_changed"})
		return ErrTokenInvalid
	}
	if user.EmailVerified {
		return nil
	}

	mctx, cancel := e.depCtx(ctx)
	err = e.users.MarkEmailVerified(mctx, user.ID)
	cancel()
	if err != nil {
		return dependencyError(err)
	}

	e.metrics.Inc(MetricEmailVerified)
	e.audit(ctx, auditRecord{action: risk.ActionEmailVerified, userID: user.ID})
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account and delivers it through the Notifier.
func (e *Engine) ResendVerification(ctx context.Context, userID string) (err error) {
	ctx, span := e.startSpan(ctx, "ResendVerification")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if !e.config.EmailVerification.Enabled {
		return fmt.Errorf("%w: email verification disabled", ErrValidation)
	}
	if err := requireNonEmpty("user id", userID); err != nil {
		return err
	}

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return userError(err)
	}
	if !user.Active || user.Deleted() {
		return ErrAccountDeactivated
	}
	if user.EmailVerified {
		return nil
	}
	if e.sendVerification(ctx, user) == "" {
		return fmt.Errorf("%w: verification token not issued", ErrDependencyUnavailable)
	}
	return nil
}
