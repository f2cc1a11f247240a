package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/device"
	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine is the auth orchestrator. It is stateless per request: all durable
// state lives in the user store, the session store and the revocation index,
// so any number of Engines may serve the same users concurrently.
//
// Engine instances are configured once through Builder and are safe for
// concurrent use.
type Engine struct {
	config Config

	users    UserStore
	sessions session.Store
	tokens   *token.Manager

	hasher    password.Hasher
	dummyHash string

	auditStore AuditStore
	dispatcher *internalaudit.Dispatcher

	notifier  Notifier
	federated FederatedVerifier
	geo       GeoLocator

	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	flows flows.Service
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.dispatcher.Close()
}

// AuditDropped returns how many events the dispatcher discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// Metrics returns the live counter set. Exporters read it through Snapshot.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() error {
	if e == nil || !e.flows.Initialized() {
		return ErrDependencyUnavailable
	}
	return nil
}

// depCtx bounds one collaborator call.
func (e *Engine) depCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Security.DependencyTimeout)
}

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "authcore."+op)
}

// endSpan records the error kind on span and ends it. It is meant to be
// deferred with a pointer to the named error result.
func endSpan(span trace.Span, errp *error) {
	if errp != nil && *errp != nil {
		kind := KindOf(*errp)
		span.SetAttributes(attribute.String("authcore.error_kind", string(kind)))
		span.SetStatus(codes.Error, string(kind))
	}
	span.End()
}

func (e *Engine) warn(op string, err error, args ...any) {
	e.logger.Warn("authcore: "+op+" failed", append(args, "op", op, "err", err)...)
}

func (e *Engine) getUser(ctx context.Context, userID string) (*User, error) {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	return e.users.GetByID(ctx, userID)
}

func (e *Engine) getUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	return e.users.GetByEmail(ctx, email)
}

// verifyToken verifies tokenStr under the dependency timeout.
func (e *Engine) verifyToken(ctx context.Context, tokenStr string, typ token.Type) (*token.Claims, error) {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	return e.tokens.Verify(ctx, tokenStr, typ)
}

func (e *Engine) consumeToken(ctx context.Context, claims *token.Claims) (bool, error) {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	return e.tokens.Consume(ctx, claims)
}

// releaseToken undoes consumeToken after a failed follow-up write.
func (e *Engine) releaseToken(ctx context.Context, claims *token.Claims) {
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	if err := e.tokens.Release(ctx, claims); err != nil {
		e.warn("release token", err, "user_id", claims.UserID)
	}
}

// sessionBlacklistTTL covers every access token that may still reference a
// revoked session.
func (e *Engine) sessionBlacklistTTL() time.Duration {
	return e.config.JWT.AccessTTL + e.config.JWT.Leeway
}

// revokeAllSessions ends every session of userID and blacklists them.
func (e *Engine) revokeAllSessions(ctx context.Context, userID, exceptSessionID, reason string) (int, error) {
	n, err := e.flows.LogoutAll(ctx, userID, exceptSessionID, reason)
	if err != nil {
		return n, storeError(err)
	}
	for i := 0; i < n; i++ {
		e.metrics.Inc(MetricSessionRevoked)
	}
	return n, nil
}

func (e *Engine) notify(ctx context.Context, msg Message) {
	if e.notifier == nil || msg.To == "" {
		return
	}
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	if err := e.notifier.Send(ctx, msg); err != nil {
		e.metrics.Inc(MetricNotifyFailed)
		e.warn("notify", err, "user_id", msg.UserID, "kind", string(msg.Kind))
	}
}

// dummyVerify spends about as long as a real verification so unknown
// accounts are not distinguishable by timing.
func (e *Engine) dummyVerify(pw string) {
	_, _ = e.hasher.Verify(pw, e.dummyHash)
}

func loginUser(u *User) *flows.LoginUser {
	return &flows.LoginUser{
		Subject:         u.subject(),
		PasswordHash:    u.PasswordHash,
		TwoFactorSecret: u.TwoFactorSecret,
		Active:          u.Active && !u.Deleted(),
		Lockout:         u.Lockout(),
	}
}

func (e *Engine) newFlowService() flows.Service {
	policy := e.config.Lockout.policy()

	issue := flows.IssueDeps{
		Now:            e.now,
		Lifetime:       e.config.sessionLifetime(),
		GuestLifetime:  e.config.Session.GuestLifetime,
		NewSessionID:   internal.NewSessionID,
		NewCSRFToken:   internal.NewCSRFToken,
		NewDeviceID:    internal.NewID,
		DescribeDevice: device.Describe,
		IssueAccess:    e.tokens.IssueAccess,
		IssueRefresh:   e.tokens.IssueRefresh,
		IssueGuest:     e.tokens.IssueGuest,
		CreateSession: func(ctx context.Context, sess *session.Session) (*session.Session, error) {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.sessions.Create(ctx, sess)
		},
	}

	login := flows.LoginDeps{
		Policy:          policy,
		RequireVerified: e.config.EmailVerification.Enabled && e.config.EmailVerification.RequiredForLogin,
		Now:             e.now,
		LookupUser: func(ctx context.Context, email string) (*flows.LoginUser, error) {
			u, err := e.getUserByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			return loginUser(u), nil
		},
		VerifyPassword: e.hasher.Verify,
		DummyVerify:    e.dummyVerify,
		RehashPassword: e.rehash,
		RecordFailure: func(ctx context.Context, userID string, p lockout.Policy, now time.Time) (lockout.State, error) {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.users.RecordLoginFailure(ctx, userID, p, now)
		},
		ResetFailures: func(ctx context.Context, userID string) error {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.users.ResetLoginFailures(ctx, userID)
		},
		UserNotFound: ErrUserNotFound,
	}

	twoFactor := flows.TwoFactorDeps{
		Policy:       policy,
		ConsumeToken: e.config.TwoFactor.ConsumeToken,
		Now:          e.now,
		VerifyToken: func(ctx context.Context, bridge string) (*token.Claims, error) {
			return e.verifyToken(ctx, bridge, token.TypeTwoFactor)
		},
		LookupUser: func(ctx context.Context, userID string) (*flows.LoginUser, error) {
			u, err := e.getUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			return loginUser(u), nil
		},
		ValidateCode: func(secret, code string) bool {
			return validateTOTP(secret, code, e.config.TwoFactor.Skew, e.now())
		},
		Consume:      e.consumeToken,
		UserNotFound: ErrUserNotFound,
	}

	refresh := flows.RefreshDeps{
		TouchOnRefresh: e.config.Session.TouchOnRefresh,
		Now:            e.now,
		VerifyToken: func(ctx context.Context, refreshToken string) (*token.Claims, error) {
			return e.verifyToken(ctx, refreshToken, token.TypeRefresh)
		},
		FindByRefreshTokenID: func(ctx context.Context, jti string) (*session.Session, error) {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.sessions.FindByRefreshTokenID(ctx, jti)
		},
		RevokeSession: func(ctx context.Context, sessionID, reason string) error {
			_, err := e.flows.Logout(ctx, sessionID, reason)
			return err
		},
		LoadSubject: func(ctx context.Context, userID string) (token.Subject, bool, error) {
			u, err := e.getUser(ctx, userID)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					return token.Subject{}, false, nil
				}
				return token.Subject{}, false, err
			}
			return u.subject(), u.Active && !u.Deleted(), nil
		},
		IssueAccess: e.tokens.IssueAccess,
		Touch: func(ctx context.Context, sessionID string) error {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.sessions.Touch(ctx, sessionID)
		},
		Warn: e.logger.Warn,
	}

	logout := flows.LogoutDeps{
		RevokeSession: func(ctx context.Context, sessionID, reason string) (bool, error) {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.sessions.Revoke(ctx, sessionID, reason)
		},
		RevokeAll: func(ctx context.Context, userID, exceptSessionID, reason string) (int, error) {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.sessions.RevokeAll(ctx, userID, exceptSessionID, reason)
		},
		ListActive: func(ctx context.Context, userID string) ([]*session.Session, error) {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.sessions.ListActive(ctx, userID)
		},
		Blacklist: func(ctx context.Context, sessionID string, ttl time.Duration) error {
			ctx, cancel := e.depCtx(ctx)
			defer cancel()
			return e.tokens.RevokeSession(ctx, sessionID, ttl)
		},
		BlacklistTTL: e.sessionBlacklistTTL(),
		Warn:         e.logger.Warn,
	}

	return flows.New(flows.Deps{
		Issue:     issue,
		Login:     login,
		TwoFactor: twoFactor,
		Refresh:   refresh,
		Logout:    logout,
	})
}

// rehash upgrades a stale hash after a successful password check. Failures
// are logged; the old hash keeps working.
func (e *Engine) rehash(ctx context.Context, userID, pw, encoded string) {
	if !e.hasher.NeedsRehash(encoded) {
		return
	}
	fresh, err := e.hasher.Hash(pw)
	if err != nil {
		e.warn("rehash", err, "user_id", userID)
		return
	}
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	if err := e.users.UpdatePassword(ctx, userID, fresh); err != nil {
		e.warn("rehash", err, "user_id", userID)
	}
}
