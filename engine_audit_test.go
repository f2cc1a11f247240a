package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestAuditRecordsRiskAndContext(t *testing.T) {
	env := newTestEnv(t, nil, func(b *Builder) { b.WithGeoLocator(fakeGeo{unusual: true}) })
	uid := env.register(t, "max@example.com", "password-123")

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.4"), "curl/8.4.0")
	_, err := env.engine.Login(ctx, "max@example.com", "wrong-pass-1")
	expectKind(t, err, KindInvalidCredentials)

	ev, ok := env.audits.last("login_failed")
	if !ok {
		t.Fatalf("expected login_failed event")
	}
	// 40 base + 20 status + 30 location + 25 automation, capped.
	if ev.RiskScore != 100 || !ev.Flagged || ev.Severity != "critical" {
		t.Fatalf("unexpected assessment: score=%d flagged=%v severity=%s", ev.RiskScore, ev.Flagged, ev.Severity)
	}
	if ev.UserID != uid || ev.IP != "198.51.100.4" || ev.StatusCode != 401 || ev.Success {
		t.Fatalf("unexpected event context: %+v", ev)
	}
	if ev.Metadata["country"] != "ZZ" {
		t.Fatalf("expected geo country in metadata, got %v", ev.Metadata)
	}
	if ev.ID == "" || !ev.CreatedAt.Equal(env.clock.Now()) {
		t.Fatalf("expected id and timestamp, got %q %v", ev.ID, ev.CreatedAt)
	}
	if got := env.engine.Metrics().Value(MetricAuditFlagged); got == 0 {
		t.Fatalf("expected flagged metric")
	}
}

func TestAuditSuccessIsLowRisk(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "ned@example.com", "password-123")

	ctx := WithUserAgent(context.Background(), "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 Safari/605.1.15")
	if _, err := env.engine.Login(ctx, "ned@example.com", "password-123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	ev, ok := env.audits.last("login_success")
	if !ok || ev.RiskScore != 20 || ev.Flagged || ev.Category != "auth" || ev.SessionID == "" {
		t.Fatalf("unexpected success event: %+v", ev)
	}
}

func TestAuditStoreFailureNeverFailsLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "oscar@example.com", "password-123")
	env.audits.err = errors.New("disk full")

	env.login(t, "oscar@example.com", "password-123")
	if got := env.engine.Metrics().Value(MetricAuditWriteFailed); got == 0 {
		t.Fatalf("expected audit write failure counted")
	}
}

func TestNotifierFailureNeverFailsRegister(t *testing.T) {
	env := newTestEnv(t, nil)
	env.notifier.err = errors.New("smtp down")

	if _, err := env.engine.Register(context.Background(), RegisterInput{Email: "pat@example.com", Password: "password-123"}); err != nil {
		t.Fatalf("expected register to succeed despite notifier failure, got %v", err)
	}
	if got := env.engine.Metrics().Value(MetricNotifyFailed); got != 1 {
		t.Fatalf("expected notify failure counted, got %d", got)
	}
}

func TestReviewAuditEventClearsFlag(t *testing.T) {
	env := newTestEnv(t, nil, func(b *Builder) { b.WithGeoLocator(fakeGeo{unusual: true}) })
	env.register(t, "quinn@example.com", "password-123")

	ctx := WithUserAgent(context.Background(), "python-requests/2.31")
	_, _ = env.engine.Login(ctx, "quinn@example.com", "wrong-pass-1")

	flagged, err := env.engine.QueryAuditEvents(context.Background(), AuditQuery{FlaggedOnly: true})
	if err != nil || len(flagged) == 0 {
		t.Fatalf("expected flagged events, got %d %v", len(flagged), err)
	}

	if err := env.engine.ReviewAuditEvent(context.Background(), flagged[0].ID); err != nil {
		t.Fatalf("ReviewAuditEvent failed: %v", err)
	}
	after, _ := env.engine.QueryAuditEvents(context.Background(), AuditQuery{FlaggedOnly: true})
	for _, ev := range after {
		if ev.ID == flagged[0].ID {
			t.Fatalf("expected flag cleared on %s", ev.ID)
		}
	}

	err = env.engine.ReviewAuditEvent(context.Background(), "missing")
	expectKind(t, err, KindValidationFailed)
}

func TestAuditDispatcherReceivesEvents(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, func(c *Config) { c.Audit.Enabled = true }, func(b *Builder) { b.WithAuditSink(sink) })

	env.register(t, "rita@example.com", "password-123")
	env.engine.Close()

	var actions []string
drain:
	for {
		select {
		case ev := <-sink.Events():
			actions = append(actions, ev.Action)
		default:
			break drain
		}
	}
	if !containsAction(actions, "register") {
		t.Fatalf("expected register event on sink, got %v", actions)
	}
}
