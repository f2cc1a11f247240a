package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strongInput() ReportInput {
	return ReportInput{
		SigningAlgorithm:          "hs256",
		KeyLength:                 32,
		AccessTTL:                 15 * time.Minute,
		RefreshTTL:                720 * time.Hour,
		SessionLifetime:           720 * time.Hour,
		Password:                  PasswordReport{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		MaxLoginAttempts:          5,
		LockoutDuration:           30 * time.Minute,
		ConsumeTwoFactorToken:     true,
		EmailVerificationEnabled:  true,
		EmailVerificationRequired: true,
		AuditStore:                true,
		AuditDispatcher:           true,
	}
}

func TestBuildReportStrongConfigHasNoWarnings(t *testing.T) {
	r := BuildReport(strongInput())
	assert.Empty(t, r.Warnings)
	assert.True(t, r.KeyStrengthOK)
	assert.True(t, r.LockoutActive)
	assert.True(t, r.EmailVerificationRequired)
	assert.True(t, r.TwoFactorReplayProtection)
}

func TestBuildReportWarnings(t *testing.T) {
	in := strongInput()
	in.KeyLength = 16
	in.AccessTTL = 2 * time.Hour
	in.ConsumeTwoFactorToken = false
	in.AuditStore = false
	in.Password.Memory = 8 * 1024

	r := BuildReport(in)
	assert.False(t, r.KeyStrengthOK)
	assert.Len(t, r.Warnings, 5)
}

func TestBuildReportEd25519IgnoresKeyLength(t *testing.T) {
	in := strongInput()
	in.SigningAlgorithm = "ed25519"
	in.KeyLength = 0
	assert.True(t, BuildReport(in).KeyStrengthOK)
}

func TestRequiredNeedsEnabled(t *testing.T) {
	in := strongInput()
	in.EmailVerificationEnabled = false
	r := BuildReport(in)
	assert.False(t, r.EmailVerificationActive)
	assert.False(t, r.EmailVerificationRequired)
}
