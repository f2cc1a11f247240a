package authcore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// Kind is the stable, transport-independent classification of a failure.
// Callers branch on Kind rather than on error text.
type Kind string

const (
	KindValidationFailed      Kind = "VALIDATION_FAILED"
	KindInvalidCredentials    Kind = "INVALID_CREDENTIALS"
	KindAccountLocked         Kind = "ACCOUNT_LOCKED"
	KindAccountDeactivated    Kind = "ACCOUNT_DEACTIVATED"
	KindEmailNotVerified      Kind = "EMAIL_NOT_VERIFIED"
	KindTwoFactorRequired     Kind = "TWO_FACTOR_REQUIRED"
	KindTwoFactorInvalid      Kind = "TWO_FACTOR_INVALID"
	KindTokenExpired          Kind = "TOKEN_EXPIRED"
	KindTokenInvalid          Kind = "TOKEN_INVALID"
	KindSessionExpired        Kind = "SESSION_EXPIRED"
	KindSessionNotFound       Kind = "SESSION_NOT_FOUND"
	KindResourceConflict      Kind = "RESOURCE_CONFLICT"
	KindDependencyUnavailable Kind = "DEPENDENCY_UNAVAILABLE"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account temporarily locked")
	ErrAccountDeactivated    = errors.New("account deactivated")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrTwoFactorRequired     = errors.New("two-factor authentication required")
	ErrTwoFactorInvalid      = errors.New("invalid two-factor code")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalid          = errors.New("invalid token")
	ErrSessionExpired        = errors.New("session expired")
	ErrSessionNotFound       = errors.New("session not found")
	ErrConflict              = errors.New("resource conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Store-level sentinels. User and audit stores return these; the Engine
// translates them to one of the kinds above.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAuditEventNotFound = errors.New("audit event not found")
)

var kindSentinels = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidationFailed},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountLocked, KindAccountLocked},
	{ErrAccountDeactivated, KindAccountDeactivated},
	{ErrEmailNotVerified, KindEmailNotVerified},
	{ErrTwoFactorRequired, KindTwoFactorRequired},
	{ErrTwoFactorInvalid, KindTwoFactorInvalid},
	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenInvalid, KindTokenInvalid},
	{ErrSessionExpired, KindSessionExpired},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrConflict, KindResourceConflict},
	{ErrEmailTaken, KindResourceConflict},
	{ErrDependencyUnavailable, KindDependencyUnavailable},
}

// KindOf classifies err. nil yields the empty Kind; errors that match no
// known sentinel are treated as DEPENDENCY_UNAVAILABLE.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindDependencyUnavailable
}

// StatusFor maps a Kind to the HTTP status used by the bundled server and
// recorded on audit events.
func StatusFor(kind Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindTwoFactorInvalid, KindTokenExpired, KindTokenInvalid,
		KindSessionExpired, KindSessionNotFound:
		return http.StatusUnauthorized
	case KindAccountDeactivated, KindEmailNotVerified:
		return http.StatusForbidden
	case KindTwoFactorRequired:
		return http.StatusAccepted
	case KindResourceConflict:
		return http.StatusConflict
	case KindAccountLocked:
		return http.StatusLocked
	default:
		return http.StatusServiceUnavailable
	}
}

// tokenError translates token package failures.
func tokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrRevocationUnavailable):
		return dependencyError(err)
	default:
		return ErrTokenInvalid
	}
}

// storeError translates persistence failures. Not-found is left to the
// caller because its meaning depends on the operation.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionNotFound
	}
	return dependencyError(err)
}

// dependencyError marks err as an outage. A deadline hit while waiting on a
// store is an outage too, never a credential failure.
func dependencyError(err error) error {
	if err == nil || errors.Is(err, ErrDependencyUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
}
