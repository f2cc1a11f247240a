package authcore

import "github.com/MrEthical07/authcore/internal/security"

// SecurityReport is a secret-free summary of the Engine's security posture.
type SecurityReport = security.Report

// SecurityReport describes how this Engine is configured. It is safe to log.
func (e *Engine) SecurityReport() SecurityReport {
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: cfg.JWT.SigningMethod,
		KeyLength:        len(cfg.JWT.PrivateKey),
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		SessionLifetime:  cfg.sessionLifetime(),
		Password: security.PasswordReport{
			Memory:      cfg.Password.Argon2.Memory,
			Time:        cfg.Password.Argon2.Time,
			Parallelism: cfg.Password.Argon2.Parallelism,
			SaltLength:  cfg.Password.Argon2.SaltLength,
			KeyLength:   cfg.Password.Argon2.KeyLength,
		},
		MaxLoginAttempts:          cfg.Lockout.MaxAttempts,
		LockoutDuration:           cfg.Lockout.Duration,
		ConsumeTwoFactorToken:     cfg.TwoFactor.ConsumeToken,
		EmailVerificationEnabled:  cfg.EmailVerification.Enabled,
		EmailVerificationRequired: cfg.EmailVerification.RequiredForLogin,
		FederatedVerifier:         e.federated != nil,
		AuditStore:                e.auditStore != nil,
		AuditDispatcher:           e.dispatcher != nil,
	})
}
