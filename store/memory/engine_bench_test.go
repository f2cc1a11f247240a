package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/revocation"
)

func newBenchEngine(b *testing.B) *authcore.Engine {
	b.Helper()
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("memory-store-engine-bench-secret")
	cfg.Password.Argon2 = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Audit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(NewUsers()).
		WithSessionStore(NewSessions()).
		WithRevocationIndex(revocation.NewMemory()).
		Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func benchLogin(b *testing.B, engine *authcore.Engine, email string) *authcore.LoginResult {
	b.Helper()
	ctx := context.Background()
	if _, err := engine.Register(ctx, authcore.RegisterInput{Email: email, Password: "bench-pass-1"}); err != nil {
		b.Fatalf("Register failed: %v", err)
	}
	res, err := engine.Login(ctx, email, "bench-pass-1")
	if err != nil {
		b.Fatalf("Login failed: %v", err)
	}
	return res
}

func BenchmarkValidateAccess(b *testing.B) {
	engine := newBenchEngine(b)
	login := benchLogin(b, engine, "bench@example.com")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ValidateAccess(ctx, login.AccessToken); err != nil {
			b.Fatalf("ValidateAccess failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine := newBenchEngine(b)
	login := benchLogin(b, engine, "bench@example.com")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Refresh(ctx, login.RefreshToken); err != nil {
			b.Fatalf("Refresh failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	engine := newBenchEngine(b)
	ctx := context.Background()
	const users = 16
	for i := 0; i < users; i++ {
		email := fmt.Sprintf("bench%d@example.com", i)
		if _, err := engine.Register(ctx, authcore.RegisterInput{Email: email, Password: "bench-pass-1"}); err != nil {
			b.Fatalf("Register failed: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		email := fmt.Sprintf("bench%d@example.com", i%users)
		if _, err := engine.Login(ctx, email, "bench-pass-1"); err != nil {
			b.Fatalf("Login failed: %v", err)
		}
	}
}
