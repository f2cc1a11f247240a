package session

import "time"

// Type distinguishes anonymous sessions from authenticated ones.
type Type string

const (
	TypeGuest         Type = "guest"
	TypeAuthenticated Type = "authenticated"
)

// Revocation reasons recorded on terminated sessions.
const (
	ReasonUserLogout         = "user_logout"
	ReasonLogoutAll          = "logout_all"
	ReasonPasswordChanged    = "password_changed"
	ReasonPasswordReset      = "password_reset"
	ReasonSessionExpired     = "session_expired"
	ReasonAccountDeactivated = "account_deactivated"
	ReasonAdminRevoked       = "admin_revoked"
)

// Session binds a user (or nobody, for guests) to one device context.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	Type   Type   `json:"type"`

	DeviceID  string `json:"device_id,omitempty"`
	Device    string `json:"device,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	Active        bool   `json:"active"`
	RevokedReason string `json:"revoked_reason,omitempty"`

	RefreshTokenID string `json:"refresh_token_id,omitempty"`
	CSRFToken      string `json:"csrf_token"`
}

// Live reports whether s is active and unexpired at now.
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.Active && now.Before(s.ExpiresAt)
}

// Clone returns a copy safe to hand to callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
