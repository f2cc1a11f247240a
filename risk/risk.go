// Package risk scores audited authentication events.
//
// The model is a fixed heuristic: a base score per action class plus
// additive penalties for error responses, unusual network origin and
// automation clients, capped at 100. Every input is an explicit table entry
// so the full input space can be enumerated in tests.
package risk

import "github.com/MrEthical07/authcore/device"

// Action names an audited event.
type Action string

const (
	ActionRegister             Action = "register"
	ActionRegisterFailed       Action = "register_failed"
	ActionLoginSuccess         Action = "login_success"
	ActionLoginFailed          Action = "login_failed"
	ActionAccountLocked        Action = "account_locked"
	ActionLoginBlocked         Action = "login_blocked"
	ActionLogout               Action = "logout"
	ActionLogoutAll            Action = "logout_all"
	ActionTokenRefresh         Action = "token_refresh"
	ActionRefreshRejected      Action = "refresh_rejected"
	ActionTwoFactorChallenge   Action = "two_factor_challenge"
	ActionTwoFactorSuccess     Action = "two_factor_success"
	ActionTwoFactorFailed      Action = "two_factor_failed"
	ActionTwoFactorEnabled     Action = "two_factor_enabled"
	ActionTwoFactorDisabled    Action = "two_factor_disabled"
	ActionPasswordChanged      Action = "password_changed"
	ActionPasswordResetRequest Action = "password_reset_requested"
	ActionPasswordReset        Action = "password_reset"
	ActionEmailVerified        Action = "email_verified"
	ActionVerificationSent     Action = "verification_sent"
	ActionGuestSession         Action = "guest_session"
	ActionFederatedLogin       Action = "federated_login"
	ActionFederatedLoginFailed Action = "federated_login_failed"
	ActionAccountDeactivated   Action = "account_deactivated"
	ActionAccountDeleted       Action = "account_deleted"
	ActionAuditReviewed        Action = "audit_reviewed"
)

// Category groups actions for reporting.
type Category string

const (
	CategoryAuth     Category = "auth"
	CategorySecurity Category = "security"
	CategoryUser     Category = "user"
	CategoryAdmin    Category = "admin"
	CategorySystem   Category = "system"
)

// Severity is derived from the final score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Class is the base-score bucket of an action.
type Class uint8

const (
	ClassLow Class = iota
	ClassMedium
	ClassHigh
)

const (
	baseHigh   = 40
	baseMedium = 20
	baseLow    = 10

	penaltyErrorStatus     = 20
	penaltyUnusualLocation = 30
	penaltyAutomation      = 25

	maxScore = 100

	// FlagThreshold is the score at which an event is held for review.
	FlagThreshold = 80
)

var classByAction = map[Action]Class{
	ActionLoginFailed:          ClassHigh,
	ActionAccountLocked:        ClassHigh,
	ActionPasswordChanged:      ClassHigh,
	ActionTwoFactorFailed:      ClassHigh,
	ActionTwoFactorDisabled:    ClassHigh,
	ActionPasswordReset:        ClassHigh,
	ActionLoginBlocked:         ClassHigh,
	ActionRefreshRejected:      ClassHigh,
	ActionFederatedLoginFailed: ClassHigh,
	ActionAccountDeleted:       ClassHigh,

	ActionLoginSuccess:         ClassMedium,
	ActionLogout:               ClassMedium,
	ActionLogoutAll:            ClassMedium,
	ActionTwoFactorSuccess:     ClassMedium,
	ActionTwoFactorEnabled:     ClassMedium,
	ActionPasswordResetRequest: ClassMedium,
	ActionFederatedLogin:       ClassMedium,
	ActionAccountDeactivated:   ClassMedium,
}

var categoryByAction = map[Action]Category{
	ActionRegister:             CategoryAuth,
	ActionRegisterFailed:       CategoryAuth,
	ActionLoginSuccess:         CategoryAuth,
	ActionLoginFailed:          CategoryAuth,
	ActionLogout:               CategoryAuth,
	ActionLogoutAll:            CategoryAuth,
	ActionTokenRefresh:         CategoryAuth,
	ActionTwoFactorChallenge:   CategoryAuth,
	ActionTwoFactorSuccess:     CategoryAuth,
	ActionGuestSession:         CategoryAuth,
	ActionFederatedLogin:       CategoryAuth,
	ActionFederatedLoginFailed: CategoryAuth,

	ActionAccountLocked:     CategorySecurity,
	ActionLoginBlocked:      CategorySecurity,
	ActionRefreshRejected:   CategorySecurity,
	ActionTwoFactorFailed:   CategorySecurity,
	ActionTwoFactorEnabled:  CategorySecurity,
	ActionTwoFactorDisabled: CategorySecurity,
	ActionPasswordChanged:   CategorySecurity,
	ActionPasswordReset:     CategorySecurity,

	ActionPasswordResetRequest: CategoryUser,
	ActionEmailVerified:        CategoryUser,
	ActionVerificationSent:     CategoryUser,
	ActionAccountDeactivated:   CategoryUser,
	ActionAccountDeleted:       CategoryUser,

	ActionAuditReviewed: CategoryAdmin,
}

// ClassOf returns the base-score bucket for a. Unknown actions are ClassLow.
func ClassOf(a Action) Class {
	return classByAction[a]
}

// CategoryOf returns the reporting category for a. Unknown actions are
// CategorySystem.
func CategoryOf(a Action) Category {
	if c, ok := categoryByAction[a]; ok {
		return c
	}
	return CategorySystem
}

// Input is the subset of an audit event the scorer reads.
type Input struct {
	Action          Action
	StatusCode      int
	UnusualLocation bool
	UserAgent       string
}

// Assessment is the scorer output.
type Assessment struct {
	Score    int
	Severity Severity
	Category Category
	Flagged  bool
}

// Score evaluates in. It has no side effects.
func Score(in Input) Assessment {
	score := base(ClassOf(in.Action))
	if in.StatusCode >= 400 {
		score += penaltyErrorStatus
	}
	if in.UnusualLocation {
		score += penaltyUnusualLocation
	}
	if device.IsBot(in.UserAgent) {
		score += penaltyAutomation
	}
	if score > maxScore {
		score = maxScore
	}

	return Assessment{
		Score:    score,
		Severity: SeverityFor(score),
		Category: CategoryOf(in.Action),
		Flagged:  score >= FlagThreshold,
	}
}

// SeverityFor maps a score to a severity band.
func SeverityFor(score int) Severity {
	switch {
	case score >= FlagThreshold:
		return SeverityCritical
	case score >= 60:
		return SeverityHigh
	case score >= 30:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func base(c Class) int {
	switch c {
	case ClassHigh:
		return baseHigh
	case ClassMedium:
		return baseMedium
	default:
		return baseLow
	}
}
