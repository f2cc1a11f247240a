package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/risk"
)

const (
	maxDisplayNameLength = 100
	defaultTier          = "free"
)

// Register creates an account. The email must be unused; the password must
// satisfy the configured policy. When email verification is enabled the new
// account starts unverified and a verification token is delivered through
// the Notifier and returned in the result. Otherwise the account is created
// already verified.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (res *RegisterResult, err error) {
	ctx, span := e.startSpan(ctx, "Register")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(in.Email)
	if err == nil {
		err = e.checkPassword(in.Password)
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if err == nil && utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		err = fmt.Errorf("%w: display name too long", ErrValidation)
	}
	if err != nil {
		e.audit(ctx, auditRecord{action: risk.ActionRegisterFailed, err: err, reason: "validation"})
		return nil, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		err = dependencyError(err)
		e.audit(ctx, auditRecord{action: risk.ActionRegisterFailed, err: err, reason: "dependency"})
		return nil, err
	}

	now := e.now()
	user := &User{
		ID:            internal.NewID(),
		Email:         email,
		DisplayName:   displayName,
		PasswordHash:  hash,
		Role:          RoleUser,
		Tier:          defaultTier,
		EmailVerified: !e.config.EmailVerification.Enabled,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.createUser(ctx, user); err != nil {
		reason := "dependency"
		if errors.Is(err, ErrConflict) {
			e.metrics.Inc(MetricRegisterConflict)
			reason = "email_taken"
		}
		e.audit(ctx, auditRecord{action: risk.ActionRegisterFailed, err: err, reason: reason})
		return nil, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.audit(ctx, auditRecord{action: risk.ActionRegister, userID: user.ID})

	res = &RegisterResult{
		UserID:        user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
	}
	if !user.EmailVerified {
		res.VerificationToken = e.sendVerification(ctx, user)
	}
	return res, nil
}

func (e *Engine) createUser(ctx context.Context, user *User) error {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return dependencyError(err)
	}
	return nil
}

// sendVerification issues a verification token and hands it to the
// Notifier. Failures are logged and yield an empty token.
func (e *Engine) sendVerification(ctx context.Context, user *User) string {
	issued, err := e.tokens.IssueEmailVerification(user.ID, user.Email)
	if err != nil {
		e.warn("issue verification token", err, "user_id", user.ID)
		return ""
	}
	e.notify(ctx, Message{
		Kind:   MessageVerification,
		To:     user.Email,
		UserID: user.ID,
		Token:  issued.Token,
	})
	e.audit(ctx, auditRecord{action: risk.ActionVerificationSent, userID: user.ID})
	return issued.Token
}

// userError translates a user lookup failure for operations addressed by
// user id, where an unknown id is a caller mistake.
func userError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return dependencyError(err)
}
