package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/risk"
	"github.com/MrEthical07/authcore/token"
)

// Login authenticates with email and password.
//
// Unknown accounts and wrong passwords both yield INVALID_CREDENTIALS. The
// attempt that reaches the lockout threshold still reports
// INVALID_CREDENTIALS; the following attempts report ACCOUNT_LOCKED until
// the lock elapses, even with the correct password. When the account has
// two-factor enabled the result carries a two_factor token and no session.
func (e *Engine) Login(ctx context.Context, email, pw string) (res *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "Login")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}

	addr, err := normalizeEmail(email)
	if err == nil && pw == "" {
		err = fmt.Errorf("%w: password required", ErrValidation)
	}
	if err == nil && len(pw) > 4*e.config.Password.MaxLength {
		err = fmt.Errorf("%w: password too long", ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	out := e.flows.CheckPassword(ctx, addr, pw)

	var userID, userEmail string
	if out.User != nil {
		userID = out.User.Subject.UserID
		userEmail = out.User.Subject.Email
	}

	switch out.Failure {
	case flows.LoginOK:
	case flows.LoginUnknownUser, flows.LoginNoPassword:
		e.metrics.Inc(MetricLoginFailure)
		reason := "unknown_user"
		if out.Failure == flows.LoginNoPassword {
			reason = "no_password"
		}
		e.audit(ctx, auditRecord{action: risk.ActionLoginFailed, userID: userID, err: ErrInvalidCredentials, reason: reason})
		return nil, ErrInvalidCredentials
	case flows.LoginLocked:
		e.metrics.Inc(MetricLoginLockedRejected)
		e.audit(ctx, auditRecord{action: risk.ActionLoginBlocked, userID: userID, err: ErrAccountLocked, reason: "account_locked"})
		return nil, ErrAccountLocked
	case flows.LoginDeactivated:
		e.metrics.Inc(MetricLoginFailure)
		e.audit(ctx, auditRecord{action: risk.ActionLoginBlocked, userID: userID, err: ErrAccountDeactivated})
		return nil, ErrAccountDeactivated
	case flows.LoginBadPassword:
		e.metrics.Inc(MetricLoginFailure)
		e.audit(ctx, auditRecord{
			action:   risk.ActionLoginFailed,
			userID:   userID,
			err:      ErrInvalidCredentials,
			reason:   "bad_password",
			metadata: map[string]string{"failed_attempts": strconv.Itoa(out.Lockout.FailedAttempts)},
		})
		if out.JustLocked {
			e.onAccountLocked(ctx, userID, userEmail, out.Lockout)
		}
		return nil, ErrInvalidCredentials
	case flows.LoginEmailNotVerified:
		e.metrics.Inc(MetricLoginFailure)
		e.audit(ctx, auditRecord{action: risk.ActionLoginBlocked, userID: userID, err: ErrEmailNotVerified})
		return nil, ErrEmailNotVerified
	default:
		err := dependencyError(out.Err)
		e.audit(ctx, auditRecord{action: risk.ActionLoginFailed, userID: userID, err: err, reason: "dependency"})
		return nil, err
	}

	if out.TwoFactorRequired {
		return e.twoFactorChallenge(ctx, userID)
	}
	return e.completeLogin(ctx, out.User.Subject, risk.ActionLoginSuccess, "password")
}

func (e *Engine) onAccountLocked(ctx context.Context, userID, email string, st lockout.State) {
	e.metrics.Inc(MetricAccountLocked)
	until := st.LockedUntil.UTC().Format(time.RFC3339)
	e.audit(ctx, auditRecord{
		action:   risk.ActionAccountLocked,
		userID:   userID,
		err:      ErrAccountLocked,
		reason:   "threshold_reached",
		metadata: map[string]string{"locked_until": until},
	})
	e.notify(ctx, Message{
		Kind:   MessageSecurityAlert,
		To:     email,
		UserID: userID,
		Data:   map[string]string{"event": "account_locked", "locked_until": until},
	})
}

// twoFactorChallenge issues the bridge token in place of a session.
func (e *Engine) twoFactorChallenge(ctx context.Context, userID string) (*LoginResult, error) {
	bridge, err := e.tokens.IssueTwoFactor(userID)
	if err != nil {
		return nil, dependencyError(err)
	}
	e.metrics.Inc(MetricTwoFactorRequired)
	e.audit(ctx, auditRecord{
		action: risk.ActionTwoFactorChallenge,
		userID: userID,
		status: StatusFor(KindTwoFactorRequired),
	})
	return &LoginResult{
		UserID:            userID,
		TwoFactorRequired: true,
		TwoFactorToken:    bridge.Token,
	}, nil
}

// completeLogin creates the session and token pair for an authenticated
// subject and records the login.
func (e *Engine) completeLogin(ctx context.Context, sub token.Subject, action risk.Action, method string) (*LoginResult, error) {
	issued, err := e.flows.IssueSession(ctx, flows.IssueRequest{
		Subject:   sub,
		DeviceID:  deviceIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})
	if err != nil {
		err = storeError(err)
		e.audit(ctx, auditRecord{action: risk.ActionLoginFailed, userID: sub.UserID, err: err, reason: "session_create"})
		return nil, err
	}
	sess := issued.Session

	e.metrics.Inc(MetricSessionCreated)
	e.metrics.Inc(MetricLoginSuccess)

	rctx, cancel := e.depCtx(ctx)
	if err := e.users.RecordLogin(rctx, sub.UserID, sess.IP, e.now()); err != nil {
		e.warn("record login", err, "user_id", sub.UserID)
	}
	cancel()

	e.audit(ctx, auditRecord{
		action:    action,
		userID:    sub.UserID,
		sessionID: sess.ID,
		metadata:  map[string]string{"method": method, "device": sess.Device},
	})

	return &LoginResult{
		UserID:           sub.UserID,
		SessionID:        sess.ID,
		CSRFToken:        sess.CSRFToken,
		AccessToken:      issued.Access.Token,
		AccessExpiresAt:  issued.Access.ExpiresAt,
		RefreshToken:     issued.Refresh.Token,
		RefreshExpiresAt: issued.Refresh.ExpiresAt,
	}, nil
}

// LoginWithTwoFactor redeems the bridge token from Login with a TOTP code.
// A wrong code yields TWO_FACTOR_INVALID and leaves the bridge token usable
// until it expires; a consumed, expired or forged bridge token yields a
// token error.
func (e *Engine) LoginWithTwoFactor(ctx context.Context, twoFactorToken, code string) (res *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "LoginWithTwoFactor")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("two-factor token", twoFactorToken); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("code", code); err != nil {
		return nil, err
	}

	out := e.flows.TwoFactor(ctx, twoFactorToken, strings.TrimSpace(code))

	var userID string
	if out.Claims != nil {
		userID = out.Claims.UserID
	}
	fail := func(err error, reason string) (*LoginResult, error) {
		e.metrics.Inc(MetricTwoFactorFailure)
		e.audit(ctx, auditRecord{action: risk.ActionTwoFactorFailed, userID: userID, err: err, reason: reason})
		return nil, err
	}

	switch out.Failure {
	case flows.TwoFactorOK:
	case flows.TwoFactorBadToken:
		err := tokenError(out.Err)
		if err == nil {
			err = ErrTokenInvalid
		}
		return fail(err, "invalid_token")
	case flows.TwoFactorUnknownUser:
		return fail(ErrTokenInvalid, "unknown_user")
	case flows.TwoFactorReplayed:
		return fail(ErrTokenInvalid, "token_replayed")
	case flows.TwoFactorNotEnabled:
		return fail(ErrTokenInvalid, "two_factor_not_enabled")
	case flows.TwoFactorDeactivated:
		return fail(ErrAccountDeactivated, "")
	case flows.TwoFactorLocked:
		return fail(ErrAccountLocked, "")
	case flows.TwoFactorBadCode:
		return fail(ErrTwoFactorInvalid, "bad_code")
	default:
		return fail(dependencyError(out.Err), "dependency")
	}

	e.metrics.Inc(MetricTwoFactorSuccess)
	e.audit(ctx, auditRecord{action: risk.ActionTwoFactorSuccess, userID: userID})
	return e.completeLogin(ctx, out.User.Subject, risk.ActionLoginSuccess, "two_factor")
}

// LoginWithProvider signs in with a federated identity token. The first
// login creates the account without a password. An existing account with
// the same email is linked only when the provider vouches for the address;
// otherwise the login is a RESOURCE_CONFLICT.
func (e *Engine) LoginWithProvider(ctx context.Context, provider, providerToken string) (res *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "LoginWithProvider")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("provider", provider); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("provider token", providerToken); err != nil {
		return nil, err
	}
	if e.federated == nil {
		return nil, fmt.Errorf("%w: no federated verifier configured", ErrDependencyUnavailable)
	}

	fail := func(userID string, err error, reason string) (*LoginResult, error) {
		e.metrics.Inc(MetricLoginFailure)
		e.audit(ctx, auditRecord{
			action:   risk.ActionFederatedLoginFailed,
			userID:   userID,
			err:      err,
			reason:   reason,
			metadata: map[string]string{"provider": provider},
		})
		return nil, err
	}

	vctx, cancel := e.depCtx(ctx)
	ident, err := e.federated.Verify(vctx, provider, providerToken)
	cancel()
	if err != nil {
		if errors.Is(err, ErrDependencyUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			return fail("", dependencyError(err), "verifier_unavailable")
		}
		return fail("", ErrInvalidCredentials, "provider_rejected")
	}
	if ident == nil || ident.ProviderID == "" {
		return fail("", ErrInvalidCredentials, "incomplete_identity")
	}

	user, err := e.resolveFederatedUser(ctx, provider, ident)
	if err != nil {
		return fail("", err, "resolve_user")
	}

	switch {
	case !user.Active || user.Deleted():
		return fail(user.ID, ErrAccountDeactivated, "")
	case e.config.Lockout.policy().Status(user.Lockout(), e.now()) == lockout.Locked:
		return fail(user.ID, ErrAccountLocked, "")
	case e.config.EmailVerification.Enabled && e.config.EmailVerification.RequiredForLogin && !user.EmailVerified:
		return fail(user.ID, ErrEmailNotVerified, "")
	}

	if user.TwoFactorEnabled {
		return e.twoFactorChallenge(ctx, user.ID)
	}
	e.metrics.Inc(MetricFederatedLogin)
	return e.completeLogin(ctx, user.subject(), risk.ActionFederatedLogin, provider)
}

func (e *Engine) resolveFederatedUser(ctx context.Context, provider string, ident *FederatedIdentity) (*User, error) {
	gctx, cancel := e.depCtx(ctx)
	user, err := e.users.GetByProvider(gctx, provider, ident.ProviderID)
	cancel()
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, dependencyError(err)
	}

	email, err := normalizeEmail(ident.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	existing, err := e.getUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !ident.EmailVerified {
			return nil, fmt.Errorf("%w: email registered to another account", ErrConflict)
		}
		lctx, cancel := e.depCtx(ctx)
		err := e.users.LinkProvider(lctx, existing.ID, provider, ident.ProviderID)
		cancel()
		if err != nil {
			return nil, dependencyError(err)
		}
		existing.Provider = provider
		existing.ProviderID = ident.ProviderID
		return existing, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, dependencyError(err)
	}

	now := e.now()
	user = &User{
		ID:            internal.NewID(),
		Email:         email,
		DisplayName:   strings.TrimSpace(ident.DisplayName),
		Role:          RoleUser,
		Tier:          defaultTier,
		EmailVerified: ident.EmailVerified,
		Provider:      provider,
		ProviderID:    ident.ProviderID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.createUser(ctx, user); err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricRegisterSuccess)
	e.audit(ctx, auditRecord{
		action:   risk.ActionRegister,
		userID:   user.ID,
		metadata: map[string]string{"provider": provider},
	})
	return user, nil
}

// CreateGuestSession opens an anonymous session. Its token has type guest
// and is never accepted where an access token is required.
func (e *Engine) CreateGuestSession(ctx context.Context) (res *GuestResult, err error) {
	ctx, span := e.startSpan(ctx, "CreateGuestSession")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return nil, err
	}

	issued, err := e.flows.IssueSession(ctx, flows.IssueRequest{
		Guest:     true,
		DeviceID:  deviceIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})
	if err != nil {
		return nil, storeError(err)
	}

	e.metrics.Inc(MetricGuestSessionCreated)
	e.audit(ctx, auditRecord{action: risk.ActionGuestSession, sessionID: issued.Session.ID})

	return &GuestResult{
		SessionID: issued.Session.ID,
		CSRFToken: issued.Session.CSRFToken,
		Token:     issued.Access.Token,
		ExpiresAt: issued.Session.ExpiresAt,
	}, nil
}
