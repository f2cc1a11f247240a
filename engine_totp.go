package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/risk"
)

// SetupTwoFactor provisions a new TOTP secret for userID and stores it
// disabled. The returned URL is an otpauth:// URI for authenticator apps.
// Calling it again before EnableTwoFactor replaces the pending secret.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID string) (setup *TwoFactorSetup, err error) {
	ctx, span := e.startSpan(ctx, "SetupTwoFactor")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, fmt.Errorf("%w: two-factor already enabled", ErrConflict)
	}

	key, err := generateTOTPKey(e.config.TwoFactor.Issuer, user.Email)
	if err != nil {
		return nil, dependencyError(err)
	}
	if err := e.setTwoFactor(ctx, user.ID, key.Secret(), false); err != nil {
		return nil, err
	}
	return &TwoFactorSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// EnableTwoFactor turns on two-factor login after the user proves
// possession of the pending secret with a current code.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) (err error) {
	ctx, span := e.startSpan(ctx, "EnableTwoFactor")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return fmt.Errorf("%w: two-factor already enabled", ErrConflict)
	}
	if user.TwoFactorSecret == "" {
		return fmt.Errorf("%w: two-factor setup required", ErrValidation)
	}
	if !validateTOTP(user.TwoFactorSecret, strings.TrimSpace(code), e.config.TwoFactor.Skew, e.now()) {
		e.metrics.Inc(MetricTwoFactorFailure)
		e.audit(ctx, auditRecord{action: risk.ActionTwoFactorFailed, userID: user.ID, err: ErrTwoFactorInvalid, reason: "enable"})
		return ErrTwoFactorInvalid
	}
	if err := e.setTwoFactor(ctx, user.ID, user.TwoFactorSecret, true); err != nil {
		return err
	}
	e.audit(ctx, auditRecord{action: risk.ActionTwoFactorEnabled, userID: user.ID})
	return nil
}

// DisableTwoFactor removes the secret after verifying a current code.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) (err error) {
	ctx, span := e.startSpan(ctx, "DisableTwoFactor")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return fmt.Errorf("%w: two-factor not enabled", ErrValidation)
	}
	if !validateTOTP(user.TwoFactorSecret, strings.TrimSpace(code), e.config.TwoFactor.Skew, e.now()) {
		e.metrics.Inc(MetricTwoFactorFailure)
		e.audit(ctx, auditRecord{action: risk.ActionTwoFactorFailed, userID: user.ID, err: ErrTwoFactorInvalid, reason: "disable"})
		return ErrTwoFactorInvalid
	}
	if err := e.setTwoFactor(ctx, user.ID, "", false); err != nil {
		return err
	}
	e.audit(ctx, auditRecord{action: risk.ActionTwoFactorDisabled, userID: user.ID})
	e.notify(ctx, Message{
		Kind:   MessageSecurityAlert,
		To:     user.Email,
		UserID: user.ID,
		Data:   map[string]string{"event": "two_factor_disabled"},
	})
	return nil
}

func (e *Engine) setTwoFactor(ctx context.Context, userID, secret string, enabled bool) error {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	if err := e.users.SetTwoFactor(ctx, userID, secret, enabled); err != nil {
		return dependencyError(err)
	}
	return nil
}

// activeUser loads userID and rejects inactive accounts.
func (e *Engine) activeUser(ctx context.Context, userID string) (*User, error) {
	if err := requireNonEmpty("user id", userID); err != nil {
		return nil, err
	}
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return nil, userError(err)
	}
	if !user.Active || user.Deleted() {
		return nil, ErrAccountDeactivated
	}
	return user, nil
}
