package token

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for every token type.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrExpired is returned when a token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for unparsable tokens, bad signatures and
	// issuer or audience mismatches.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongType is returned when the token type differs from the expected one.
	ErrWrongType = errors.New("token type mismatch")
	// ErrRevoked is returned when the token or its session is blacklisted.
	ErrRevoked = errors.New("token revoked")
	// ErrRevocationUnavailable wraps failures of the revocation index.
	ErrRevocationUnavailable = errors.New("revocation index unavailable")
)

// Config holds signing material, claim expectations and per-type lifetimes.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for hs256, or the Ed25519 private key
	// (raw or PEM) for ed25519.
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string

	Issuer   string
	Audience string
	Leeway   time.Duration

	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	GuestTTL             time.Duration
	TwoFactorTTL         time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Manager issues and verifies typed tokens. It holds no mutable state; the
// only external input to Verify besides the token is the revocation index.
type Manager struct {
	config     Config
	revocation RevocationIndex
	signKey    any
	verifyKey  any
}

// NewManager validates cfg and prepares signing keys. revocation may be nil
// only in contexts that never revoke, such as offline tooling.
func NewManager(cfg Config, revocation RevocationIndex) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.GuestTTL <= 0 ||
		cfg.TwoFactorTTL <= 0 || cfg.EmailVerificationTTL <= 0 || cfg.PasswordResetTTL <= 0 {
		return nil, errors.New("token lifetimes must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, revocation: revocation}

	switch cfg.SigningMethod {
	case MethodHS256, "":
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 secret must be at least 32 bytes")
		}
		m.config.SigningMethod = MethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		m.signKey = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		} else {
			m.verifyKey = priv.Public()
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// IssueAccess signs a short-lived access token for an authenticated session.
func (m *Manager) IssueAccess(sub Subject, sessionID, deviceID string) (Issued, error) {
	return m.issue(Claims{
		Type:          TypeAccess,
		UserID:        sub.UserID,
		SessionID:     sessionID,
		DeviceID:      deviceID,
		Role:          sub.Role,
		Tier:          sub.Tier,
		EmailVerified: sub.EmailVerified,
		TwoFactor:     sub.TwoFactorEnabled,
	}, m.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token. The returned ID is the jti
// the session store indexes the owning session by.
func (m *Manager) IssueRefresh(sub Subject, sessionID, deviceID string) (Issued, error) {
	return m.issue(Claims{
		Type:      TypeRefresh,
		UserID:    sub.UserID,
		SessionID: sessionID,
		DeviceID:  deviceID,
	}, m.config.RefreshTTL)
}

// IssueGuest signs a token for an anonymous session.
func (m *Manager) IssueGuest(sessionID string) (Issued, error) {
	return m.issue(Claims{Type: TypeGuest, SessionID: sessionID}, m.config.GuestTTL)
}

// IssueTwoFactor signs the bridge token proving the password step succeeded.
// It is bound to the user only; no session exists yet.
func (m *Manager) IssueTwoFactor(userID string) (Issued, error) {
	return m.issue(Claims{Type: TypeTwoFactor, UserID: userID}, m.config.TwoFactorTTL)
}

// IssueEmailVerification signs a token confirming ownership of email.
func (m *Manager) IssueEmailVerification(userID, email string) (Issued, error) {
	return m.issue(Claims{Type: TypeEmailVerification, UserID: userID, Email: email}, m.config.EmailVerificationTTL)
}

// IssuePasswordReset signs a reset token keyed to the user and their email.
func (m *Manager) IssuePasswordReset(userID, email string) (Issued, error) {
	return m.issue(Claims{Type: TypePasswordReset, UserID: userID, Email: email}, m.config.PasswordResetTTL)
}

func (m *Manager) issue(claims Claims, ttl time.Duration) (Issued, error) {
	now := m.config.Now()
	jti := uuid.NewString()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   claims.UserID,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	tok := jwt.NewWithClaims(m.method(), claims)
	if m.config.KeyID != "" {
		tok.Header["kid"] = m.config.KeyID
	}

	signed, err := tok.SignedString(m.signKey)
	if err != nil {
		return Issued{}, fmt.Errorf("sign %s token: %w", claims.Type, err)
	}

	return Issued{
		Token:     signed,
		ID:        jti,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse checks signature, algorithm, expiry, issuer, audience and type, but
// not revocation.
func (m *Manager) Parse(tokenStr string, expected Type) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || !claims.Type.Valid() || claims.ID == "" {
		return nil, ErrMalformed
	}
	if claims.Type != expected {
		return nil, ErrWrongType
	}

	return claims, nil
}

// Verify parses tokenStr as the expected type and rejects it when its jti or
// its session is present in the revocation index.
func (m *Manager) Verify(ctx context.Context, tokenStr string, expected Type) (*Claims, error) {
	claims, err := m.Parse(tokenStr, expected)
	if err != nil {
		return nil, err
	}
	if m.revocation == nil {
		return claims, nil
	}

	revoked, err := m.revocation.IsRevoked(ctx, JTIKey(claims.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	if !revoked && claims.SessionID != "" {
		revoked, err = m.revocation.IsRevoked(ctx, SessionKey(claims.SessionID))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
	}
	if revoked {
		return nil, ErrRevoked
	}

	return claims, nil
}

// Revoke blacklists the token's jti for the rest of its lifetime.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || m.revocation == nil {
		return nil
	}
	ttl := claims.Remaining(m.config.Now())
	if ttl <= 0 {
		return nil
	}
	if err := m.revocation.Revoke(ctx, JTIKey(claims.ID), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// RevokeSession blacklists every token carrying sessionID. ttl should cover
// the longest lifetime of a token that may reference the session.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" || m.revocation == nil || ttl <= 0 {
		return nil
	}
	if err := m.revocation.Revoke(ctx, SessionKey(sessionID), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// Consume marks a single-use token as spent. It reports false when the token
// had already been consumed.
func (m *Manager) Consume(ctx context.Context, claims *Claims) (bool, error) {
	if claims == nil {
		return false, ErrMalformed
	}
	if m.revocation == nil {
		return true, nil
	}
	ttl := claims.Remaining(m.config.Now())
	if ttl <= 0 {
		return false, ErrExpired
	}
	first, err := m.revocation.Consume(ctx, JTIKey(claims.ID), ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return first, nil
}

// Release makes a consumed token usable again. Call it only when the work
// guarded by Consume did not take effect.
func (m *Manager) Release(ctx context.Context, claims *Claims) error {
	if claims == nil || m.revocation == nil {
		return nil
	}
	if err := m.revocation.Release(ctx, JTIKey(claims.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// TTL returns the configured lifetime for typ.
func (m *Manager) TTL(typ Type) time.Duration {
	switch typ {
	case TypeAccess:
		return m.config.AccessTTL
	case TypeRefresh:
		return m.config.RefreshTTL
	case TypeGuest:
		return m.config.GuestTTL
	case TypeTwoFactor:
		return m.config.TwoFactorTTL
	case TypeEmailVerification:
		return m.config.EmailVerificationTTL
	case TypePasswordReset:
		return m.config.PasswordResetTTL
	}
	return 0
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
