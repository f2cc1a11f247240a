package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes err as its stable kind. Dependency failures carry no
// message so internal details never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	kind := authcore.KindOf(err)
	body := ErrorBody{Error: string(kind)}
	switch kind {
	case authcore.KindDependencyUnavailable:
	case authcore.KindValidationFailed:
		body.Message = err.Error()
	default:
		body.Message = publicMessage(kind)
	}
	WriteJSON(w, authcore.StatusFor(kind), body)
}

func publicMessage(kind authcore.Kind) string {
	switch kind {
	case authcore.KindInvalidCredentials:
		return "invalid email or password"
	case authcore.KindAccountLocked:
		return "account temporarily locked"
	case authcore.KindAccountDeactivated:
		return "account deactivated"
	case authcore.KindEmailNotVerified:
		return "email address not verified"
	case authcore.KindTwoFactorRequired:
		return "two-factor authentication required"
	case authcore.KindTwoFactorInvalid:
		return "invalid two-factor code"
	case authcore.KindTokenExpired:
		return "token expired"
	case authcore.KindTokenInvalid:
		return "invalid token"
	case authcore.KindSessionExpired:
		return "session expired"
	case authcore.KindSessionNotFound:
		return "session not found"
	case authcore.KindResourceConflict:
		return "resource already exists"
	}
	return ""
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "RATE_LIMITED", Message: "too many requests"})
}
