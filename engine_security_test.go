package authcore

import (
	"strings"
	"testing"
)

func TestSecurityReportReflectsConfig(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.EmailVerification.RequiredForLogin = true
	})

	r := env.engine.SecurityReport()
	if r.SigningAlgorithm != "hs256" || !r.KeyStrengthOK {
		t.Fatalf("unexpected signing posture: %+v", r)
	}
	if !r.LockoutActive || !r.EmailVerificationRequired || !r.AuditPersisted {
		t.Fatalf("expected lockout, required verification and audit store: %+v", r)
	}
	if r.AuditStreamed {
		t.Fatal("audit dispatcher is disabled in tests")
	}
	if r.FederatedLoginActive {
		t.Fatal("no federated verifier configured")
	}

	// cheapArgon2 is below the recommended memory cost.
	found := false
	for _, w := range r.Warnings {
		if strings.Contains(w, "argon2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected argon2 warning, got %v", r.Warnings)
	}
}

func TestSecurityReportFederated(t *testing.T) {
	env := newTestEnv(t, nil, func(b *Builder) {
		b.WithFederatedVerifier(&fakeFederated{})
	})
	if !env.engine.SecurityReport().FederatedLoginActive {
		t.Fatal("expected federated login to be reported")
	}
}
