package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	sessionIDSize = 16
	csrfTokenSize = 32
)

// NewSessionID returns 128 random bits encoded as unpadded base64url.
func NewSessionID() (string, error) {
	return randomToken(sessionIDSize)
}

// NewCSRFToken returns a per-session anti-forgery token.
func NewCSRFToken() (string, error) {
	return randomToken(csrfTokenSize)
}

// NewID returns a random UUID string for records such as users and audit events.
func NewID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id has the exact canonical shape produced
// by NewSessionID.
func ValidSessionID(id string) bool {
	if len(id) != base64.RawURLEncoding.EncodedLen(sessionIDSize) {
		return false
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(id)
	return err == nil && len(raw) == sessionIDSize
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken(size int) (string, error) {
	if size <= 0 {
		return "", errors.New("invalid token size")
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
