package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// Role is the coarse authorization level carried in access tokens.
type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// User is the identity record. PasswordHash is empty for accounts that only
// sign in through a federated provider.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	Tier         string

	EmailVerified    bool
	TwoFactorSecret  string
	TwoFactorEnabled bool

	FailedLoginAttempts int
	LockedUntil         time.Time

	LastLoginAt time.Time
	LastLoginIP string

	Provider   string
	ProviderID string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt time.Time
}

// Lockout returns the lockout view of u.
func (u *User) Lockout() lockout.State {
	return lockout.State{FailedAttempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil}
}

// Deleted reports whether the account was soft-deleted.
func (u *User) Deleted() bool {
	return !u.DeletedAt.IsZero()
}

func (u *User) subject() token.Subject {
	return token.Subject{
		UserID:           u.ID,
		Email:            u.Email,
		Role:             string(u.Role),
		Tier:             u.Tier,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// Clone returns a copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

// UserStore persists users. Implementations must make RecordLoginFailure a
// single atomic read-modify-write against the stored record so concurrent
// failures never lose increments.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*User, error)
	LinkProvider(ctx context.Context, userID, provider, providerID string) error

	// RecordLoginFailure applies policy.Fail to the stored lockout state and
	// returns the state after the write.
	RecordLoginFailure(ctx context.Context, userID string, policy lockout.Policy, now time.Time) (lockout.State, error)
	ResetLoginFailures(ctx context.Context, userID string) error

	// UpdatePassword replaces the hash and clears lockout state.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
	SetTwoFactor(ctx context.Context, userID, secret string, enabled bool) error
	RecordLogin(ctx context.Context, userID, ip string, at time.Time) error

	Deactivate(ctx context.Context, userID string) error
	// Anonymize soft-deletes the account: it scrubs email, display name,
	// credentials and provider links, and deactivates it.
	Anonymize(ctx context.Context, userID string, at time.Time) error
}

// Audit types are defined in internal/audit and re-exported here.
type (
	AuditEvent     = internalaudit.Event
	AuditSink      = internalaudit.Sink
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	SlogSink       = internalaudit.SlogSink
	MultiSink      = internalaudit.MultiSink
	KafkaSink      = internalaudit.KafkaSink
)

// NewChannelSink returns a sink that buffers events in a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// AuditQuery filters AuditStore.Query. Zero fields do not filter.
type AuditQuery struct {
	UserID      string
	FlaggedOnly bool
	Severity    string
	Since       time.Time
	Limit       int
}

// AuditStore is the durable, append-only audit log. ClearFlag is the only
// permitted mutation.
type AuditStore interface {
	Append(ctx context.Context, event AuditEvent) error
	ClearFlag(ctx context.Context, eventID string) error
	Query(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
}

// FederatedIdentity is the normalized result of verifying a provider token.
type FederatedIdentity struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	DisplayName   string
}

// FederatedVerifier validates third-party identity tokens. Errors wrapping
// ErrDependencyUnavailable are outages; any other error rejects the token.
type FederatedVerifier interface {
	Verify(ctx context.Context, provider, providerToken string) (*FederatedIdentity, error)
}

// MessageKind selects the template of an outbound notification.
type MessageKind string

const (
	MessageVerification  MessageKind = "verification"
	MessagePasswordReset MessageKind = "password_reset"
	MessageSecurityAlert MessageKind = "security_alert"
)

// Message is an outbound notification.
type Message struct {
	Kind   MessageKind
	To     string
	UserID string
	Token  string
	Data   map[string]string
}

// Notifier delivers messages. Failures are logged and never fail a flow.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// GeoContext is what a GeoLocator knows about a request origin.
type GeoContext struct {
	UnusualLocation bool
	Country         string
}

// GeoLocator enriches audit events with network-origin context.
type GeoLocator interface {
	Lookup(ctx context.Context, ip, userID string) (*GeoContext, error)
}

// RegisterInput is the Register request.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// RegisterResult describes the created account. VerificationToken is set
// when email verification is enabled; it is also delivered via Notifier.
type RegisterResult struct {
	UserID            string
	Email             string
	EmailVerified     bool
	VerificationToken string
}

// LoginResult is either a full session or a pending two-factor challenge.
type LoginResult struct {
	UserID string

	SessionID        string
	CSRFToken        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time

	TwoFactorRequired bool
	TwoFactorToken    string
}

// RefreshResult carries the reissued access token. The refresh token is
// not rotated.
type RefreshResult struct {
	SessionID       string
	AccessToken     string
	AccessExpiresAt time.Time
}

// GuestResult describes an anonymous session.
type GuestResult struct {
	SessionID string
	CSRFToken string
	Token     string
	ExpiresAt time.Time
}

// Principal is the verified identity behind an access token.
type Principal struct {
	UserID           string
	SessionID        string
	DeviceID         string
	Role             Role
	Tier             string
	EmailVerified    bool
	TwoFactorEnabled bool
}

// SessionInfo is the caller-visible view of a live session.
type SessionInfo struct {
	SessionID      string
	UserID         string
	Type           session.Type
	Device         string
	IP             string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	CSRFToken      string
}

// TwoFactorSetup is the provisioning material for an authenticator app.
type TwoFactorSetup struct {
	Secret string
	URL    string
}
