// Package config loads the authcore binaries' settings from the environment
// and an optional .env file using Viper.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MrEthical07/authcore"
)

// Config holds process configuration for cmd/authcore-server and
// cmd/authcore-migrate.
type Config struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL selects the Postgres stores when set; memory stores otherwise.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL points at the session and revocation Redis. Empty starts an
	// embedded miniredis, which is only acceptable outside production.
	RedisURL string `mapstructure:"REDIS_URL"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTSecret is the HS256 key. A value prefixed with "hex:" is decoded.
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAudience   string        `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL  time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	MaxLoginAttempts         int           `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	LockoutTime              time.Duration `mapstructure:"LOCKOUT_TIME"`
	TOTPSkew                 uint          `mapstructure:"TOTP_SKEW"`
	EmailVerificationEnabled bool          `mapstructure:"EMAIL_VERIFICATION_ENABLED"`
	RequireEmailVerification bool          `mapstructure:"REQUIRE_EMAIL_VERIFICATION"`

	// KafkaBrokers is a comma-separated broker list. When set, audit events
	// are also streamed to AuditKafkaTopic.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	RateLimitEnabled bool    `mapstructure:"RATE_LIMIT_ENABLED"`
	ThrottleRPS      float64 `mapstructure:"THROTTLE_RPS"`
	ThrottleBurst    int     `mapstructure:"THROTTLE_BURST"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Environment variables override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // a missing .env is fine
	}
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "authcore")
	v.SetDefault("JWT_AUDIENCE", "authcore-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h")
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("LOCKOUT_TIME", "30m")
	v.SetDefault("TOTP_SKEW", 2)
	v.SetDefault("EMAIL_VERIFICATION_ENABLED", true)
	v.SetDefault("REQUIRE_EMAIL_VERIFICATION", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "authcore-audit")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("THROTTLE_RPS", 20.0)
	v.SetDefault("THROTTLE_BURST", 40)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.Production() {
		if c.JWTSecret == "" {
			return errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when APP_ENV=production")
		}
	}
	if _, err := c.secret(); err != nil {
		return err
	}
	if c.ThrottleRPS < 0 || c.ThrottleBurst < 0 {
		return errors.New("config: THROTTLE_RPS and THROTTLE_BURST must be >= 0")
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// DevSecret is the signing key used outside production when JWT_SECRET is
// unset. Tokens signed with it do not survive a restart of a production
// deployment because production refuses to start without JWT_SECRET.
const DevSecret = "authcore-development-signing-key"

func (c *Config) secret() ([]byte, error) {
	s := c.JWTSecret
	if s == "" {
		return []byte(DevSecret), nil
	}
	if rest, ok := strings.CutPrefix(s, "hex:"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("config: JWT_SECRET: %w", err)
		}
		s = string(b)
	}
	if len(s) < 32 {
		return nil, errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	return []byte(s), nil
}

// EngineConfig translates c into an authcore.Config.
func (c *Config) EngineConfig() (authcore.Config, error) {
	key, err := c.secret()
	if err != nil {
		return authcore.Config{}, err
	}
	out := authcore.DefaultConfig()
	out.JWT.PrivateKey = key
	out.JWT.Issuer = c.JWTIssuer
	out.JWT.Audience = c.JWTAudience
	out.JWT.AccessTTL = c.JWTAccessTTL
	out.JWT.RefreshTTL = c.JWTRefreshTTL
	out.Lockout.MaxAttempts = c.MaxLoginAttempts
	out.Lockout.Duration = c.LockoutTime
	out.TwoFactor.Skew = c.TOTPSkew
	out.EmailVerification.Enabled = c.EmailVerificationEnabled
	out.EmailVerification.RequiredForLogin = c.RequireEmailVerification

	if err := out.Validate(); err != nil {
		return authcore.Config{}, fmt.Errorf("config: %w", err)
	}
	return out, nil
}

// KafkaBrokerList returns the broker addresses from KafkaBrokers.
func (c *Config) KafkaBrokerList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
