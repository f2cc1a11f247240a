package security

import "time"

// minHMACKeyBytes is the smallest HS256 key the report treats as strong.
const minHMACKeyBytes = 32

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarizes the security-relevant settings of one Engine.
type Report struct {
	SigningAlgorithm string
	KeyStrengthOK    bool
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SessionLifetime  time.Duration
	Argon2           PasswordReport

	LockoutActive             bool
	TwoFactorReplayProtection bool
	EmailVerificationActive   bool
	EmailVerificationRequired bool
	FederatedLoginActive      bool
	AuditPersisted            bool
	AuditStreamed             bool

	// Warnings lists settings that weaken the deployment.
	Warnings []string
}

type ReportInput struct {
	SigningAlgorithm string
	KeyLength        int
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SessionLifetime  time.Duration
	Password         PasswordReport

	MaxLoginAttempts int
	LockoutDuration  time.Duration

	ConsumeTwoFactorToken     bool
	EmailVerificationEnabled  bool
	EmailVerificationRequired bool
	FederatedVerifier         bool
	AuditStore                bool
	AuditDispatcher           bool
}

func BuildReport(input ReportInput) Report {
	keyOK := input.SigningAlgorithm != "hs256" || input.KeyLength >= minHMACKeyBytes

	r := Report{
		SigningAlgorithm:          input.SigningAlgorithm,
		KeyStrengthOK:             keyOK,
		AccessTTL:                 input.AccessTTL,
		RefreshTTL:                input.RefreshTTL,
		SessionLifetime:           input.SessionLifetime,
		Argon2:                    input.Password,
		LockoutActive:             input.MaxLoginAttempts > 0 && input.LockoutDuration > 0,
		TwoFactorReplayProtection: input.ConsumeTwoFactorToken,
		EmailVerificationActive:   input.EmailVerificationEnabled,
		EmailVerificationRequired: input.EmailVerificationEnabled && input.EmailVerificationRequired,
		FederatedLoginActive:      input.FederatedVerifier,
		AuditPersisted:            input.AuditStore,
		AuditStreamed:             input.AuditDispatcher,
	}

	if !keyOK {
		r.Warnings = append(r.Warnings, "hs256 key shorter than 32 bytes")
	}
	if input.AccessTTL > time.Hour {
		r.Warnings = append(r.Warnings, "access tokens live longer than one hour")
	}
	if !input.ConsumeTwoFactorToken {
		r.Warnings = append(r.Warnings, "two-factor tokens can be replayed within their lifetime")
	}
	if !input.AuditStore {
		r.Warnings = append(r.Warnings, "no audit store configured")
	}
	if input.Password.Memory < 19*1024 {
		r.Warnings = append(r.Warnings, "argon2 memory below 19 MiB")
	}
	return r
}
