package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/token"
)

// Config is the full Engine configuration. Start from DefaultConfig and
// override fields; Build validates and copies it.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Lockout           LockoutConfig
	TwoFactor         TwoFactorConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Password          PasswordConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects signing material and claim expectations.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	// PrivateKey is the HMAC secret for hs256 or the Ed25519 private key.
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes. A zero Lifetime uses the
// refresh token TTL.
type SessionConfig struct {
	Lifetime      time.Duration
	GuestLifetime time.Duration
	// TouchOnRefresh bumps last-activity on every successful refresh.
	TouchOnRefresh bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig is the failed-login policy.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

func (c LockoutConfig) policy() lockout.Policy {
	return lockout.Policy{MaxAttempts: c.MaxAttempts, Duration: c.Duration}
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls the two-factor bridge.
type TwoFactorConfig struct {
	// Issuer is shown by authenticator apps.
	Issuer   string
	TokenTTL time.Duration
	// Skew is the number of 30 second steps accepted on either side of now.
	Skew uint
	// ConsumeToken marks the bridge token as used after the first
	// successful code so it cannot be replayed within its lifetime.
	ConsumeToken bool
}

/*
====================================
EMAIL / RESET CONFIG
====================================
*/

// EmailVerificationConfig controls verification of new addresses. When
// disabled, new accounts are created already verified.
type EmailVerificationConfig struct {
	Enabled          bool
	RequiredForLogin bool
	TokenTTL         time.Duration
}

// PasswordResetConfig controls reset tokens.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig is the password policy and hashing cost.
type PasswordConfig struct {
	MinLength int
	MaxLength int
	Argon2    password.Argon2Params
}

/*
====================================
AUDIT / METRICS / SECURITY
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher. The AuditStore
// write is synchronous and independent of these settings.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds cross-cutting limits.
type SecurityConfig struct {
	// DependencyTimeout bounds every store, notifier and geo call.
	DependencyTimeout time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. JWT.PrivateKey must
// still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(token.MethodHS256),
			Issuer:        "authcore",
			Audience:      "authcore-api",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			GuestLifetime:  24 * time.Hour,
			TouchOnRefresh: true,
		},
		Lockout: LockoutConfig{
			MaxAttempts: lockout.DefaultMaxAttempts,
			Duration:    lockout.DefaultDuration,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:       "authcore",
			TokenTTL:     5 * time.Minute,
			Skew:         2,
			ConsumeToken: true,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:          true,
			RequiredForLogin: false,
			TokenTTL:         24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: 15 * time.Minute,
		},
		Password: PasswordConfig{
			MinLength: 8,
			MaxLength: 128,
			Argon2:    password.DefaultArgon2Params(),
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			DependencyTimeout: 3 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the Engine cannot run with.
func (c *Config) Validate() error {
	switch c.JWT.SigningMethod {
	case string(token.MethodHS256), string(token.MethodEd25519):
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	if c.JWT.Issuer == "" {
		return errors.New("JWT Issuer is required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT AccessTTL and RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}

	if c.Session.Lifetime < 0 || c.Session.GuestLifetime <= 0 {
		return errors.New("Session lifetimes must be > 0")
	}
	if c.Session.Lifetime > 0 && c.Session.Lifetime < c.JWT.AccessTTL {
		return errors.New("Session Lifetime must cover at least one access token")
	}

	if err := c.Lockout.policy().Validate(); err != nil {
		return err
	}

	if c.TwoFactor.TokenTTL <= 0 {
		return errors.New("TwoFactor TokenTTL must be > 0")
	}
	if c.TwoFactor.TokenTTL > 15*time.Minute {
		return errors.New("TwoFactor TokenTTL must be <= 15m")
	}
	if c.TwoFactor.Skew > 10 {
		return errors.New("TwoFactor Skew must be <= 10")
	}
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.EmailVerification.RequiredForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequiredForLogin needs Enabled")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength || c.Password.MaxLength > 1024 {
		return errors.New("Password MaxLength must be between MinLength and 1024")
	}
	if err := c.Password.Argon2.Validate(); err != nil {
		return err
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Security.DependencyTimeout <= 0 {
		return errors.New("Security DependencyTimeout must be > 0")
	}
	return nil
}

func (c *Config) sessionLifetime() time.Duration {
	if c.Session.Lifetime > 0 {
		return c.Session.Lifetime
	}
	return c.JWT.RefreshTTL
}

func (c *Config) tokenConfig() token.Config {
	return token.Config{
		SigningMethod:        token.SigningMethod(c.JWT.SigningMethod),
		PrivateKey:           c.JWT.PrivateKey,
		PublicKey:            c.JWT.PublicKey,
		KeyID:                c.JWT.KeyID,
		Issuer:               c.JWT.Issuer,
		Audience:             c.JWT.Audience,
		Leeway:               c.JWT.Leeway,
		AccessTTL:            c.JWT.AccessTTL,
		RefreshTTL:           c.JWT.RefreshTTL,
		GuestTTL:             c.Session.GuestLifetime,
		TwoFactorTTL:         c.TwoFactor.TokenTTL,
		EmailVerificationTTL: c.EmailVerification.TokenTTL,
		PasswordResetTTL:     c.PasswordReset.TokenTTL,
	}
}
