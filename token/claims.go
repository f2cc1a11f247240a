package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates what a token may be used for. A token is only ever
// accepted where its own type is expected.
type Type string

const (
	TypeAccess            Type = "access"
	TypeRefresh           Type = "refresh"
	TypeGuest             Type = "guest"
	TypeTwoFactor         Type = "two_factor"
	TypeEmailVerification Type = "email_verification"
	TypePasswordReset     Type = "password_reset"
)

// Valid reports whether t is one of the known token types.
func (t Type) Valid() bool {
	switch t {
	case TypeAccess, TypeRefresh, TypeGuest, TypeTwoFactor, TypeEmailVerification, TypePasswordReset:
		return true
	}
	return false
}

// Claims is the signed claim set shared by every token type. Fields that do
// not apply to a type are omitted from the encoded token.
type Claims struct {
	Type          Type   `json:"typ"`
	UserID        string `json:"uid,omitempty"`
	SessionID     string `json:"sid,omitempty"`
	DeviceID      string `json:"did,omitempty"`
	Role          string `json:"role,omitempty"`
	Tier          string `json:"tier,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"ev,omitempty"`
	TwoFactor     bool   `json:"tfa,omitempty"`
	jwt.RegisteredClaims
}

// Remaining returns how long the token stays valid after now, or zero.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Subject is the user snapshot embedded into access and refresh tokens.
type Subject struct {
	UserID           string
	Email            string
	Role             string
	Tier             string
	EmailVerified    bool
	TwoFactorEnabled bool
}

// Issued is a freshly signed token together with the identifiers callers
// need to persist alongside it.
type Issued struct {
	Token     string
	ID        string
	Type      Type
	ExpiresAt time.Time
}
