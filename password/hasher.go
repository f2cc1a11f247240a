package password

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidHash is returned when a stored hash cannot be decoded.
	ErrInvalidHash = errors.New("password: invalid hash encoding")
	// ErrUnsupportedAlgorithm is returned for hashes produced by an unknown scheme.
	ErrUnsupportedAlgorithm = errors.New("password: unsupported hash algorithm")
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// Chain hashes with the primary Hasher and verifies with whichever member
// recognises the stored encoding.
type Chain struct {
	primary Hasher
	bcrypt  *Bcrypt
}

// NewChain returns a Hasher that writes argon2id and still reads bcrypt.
func NewChain(primary Hasher) *Chain {
	return &Chain{primary: primary, bcrypt: NewBcrypt(0)}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

func (c *Chain) Verify(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return c.bcrypt.Verify(password, encoded)
	}
	return c.primary.Verify(password, encoded)
}

func (c *Chain) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	return c.primary.NeedsRehash(encoded)
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
