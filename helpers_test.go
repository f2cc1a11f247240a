package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*User
	err   error

	recordLoginCalls int
	// failPasswordWrite makes the next UpdatePassword fail once.
	failPasswordWrite error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*User)}
}

func (f *fakeUsers) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeUsers) get(id string) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Clone()
}

func (f *fakeUsers) Create(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	f.users[u.ID] = u.Clone()
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Clone(), nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUsers) GetByProvider(_ context.Context, provider, providerID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUsers) mutate(id string, fn func(*User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsers) LinkProvider(_ context.Context, id, provider, providerID string) error {
	return f.mutate(id, func(u *User) { u.Provider, u.ProviderID = provider, providerID })
}

func (f *fakeUsers) RecordLoginFailure(_ context.Context, id string, p lockout.Policy, now time.Time) (lockout.State, error) {
	var out lockout.State
	err := f.mutate(id, func(u *User) {
		out = p.Fail(u.Lockout(), now)
		u.FailedLoginAttempts, u.LockedUntil = out.FailedAttempts, out.LockedUntil
	})
	return out, err
}

func (f *fakeUsers) ResetLoginFailures(_ context.Context, id string) error {
	return f.mutate(id, func(u *User) { u.FailedLoginAttempts, u.LockedUntil = 0, time.Time{} })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	if err := f.failPasswordWrite; err != nil {
		f.failPasswordWrite = nil
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	return f.mutate(id, func(u *User) {
		u.PasswordHash = hash
		u.FailedLoginAttempts, u.LockedUntil = 0, time.Time{}
	})
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, id string) error {
	return f.mutate(id, func(u *User) { u.EmailVerified = true })
}

func (f *fakeUsers) SetTwoFactor(_ context.Context, id, secret string, enabled bool) error {
	return f.mutate(id, func(u *User) { u.TwoFactorSecret, u.TwoFactorEnabled = secret, enabled })
}

func (f *fakeUsers) RecordLogin(_ context.Context, id, ip string, at time.Time) error {
	return f.mutate(id, func(u *User) {
		f.recordLoginCalls++
		u.LastLoginAt, u.LastLoginIP = at, ip
	})
}

func (f *fakeUsers) Deactivate(_ context.Context, id string) error {
	return f.mutate(id, func(u *User) { u.Active = false })
}

func (f *fakeUsers) Anonymize(_ context.Context, id string, at time.Time) error {
	return f.mutate(id, func(u *User) {
		u.Email = "deleted+" + u.ID + "@invalid"
		u.DisplayName = ""
		u.PasswordHash = ""
		u.TwoFactorSecret, u.TwoFactorEnabled = "", false
		u.Provider, u.ProviderID = "", ""
		u.Active = false
		u.DeletedAt = at
	})
}

type fakeAudit struct {
	mu     sync.Mutex
	events []AuditEvent
	err    error
}

func (f *fakeAudit) Append(_ context.Context, ev AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev.Clone())
	return nil
}

func (f *fakeAudit) ClearFlag(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Flagged = false
			return nil
		}
	}
	return ErrAuditEventNotFound
}

func (f *fakeAudit) Query(_ context.Context, q AuditQuery) ([]AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AuditEvent
	for _, ev := range f.events {
		if q.UserID != "" && ev.UserID != q.UserID {
			continue
		}
		if q.FlaggedOnly && !ev.Flagged {
			continue
		}
		out = append(out, ev.Clone())
	}
	return out, nil
}

// actions returns the recorded action names in order.
func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Action)
	}
	return out
}

func (f *fakeAudit) last(action string) (AuditEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Action == action {
			return f.events[i].Clone(), true
		}
	}
	return AuditEvent{}, false
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeNotifier) lastOf(kind MessageKind) (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Kind == kind {
			return f.sent[i], true
		}
	}
	return Message{}, false
}

type fakeFederated struct {
	identities map[string]*FederatedIdentity
	err        error
}

func (f *fakeFederated) Verify(_ context.Context, provider, tok string) (*FederatedIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	ident, ok := f.identities[provider+":"+tok]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	cp := *ident
	return &cp, nil
}

type fakeGeo struct {
	unusual bool
}

func (g fakeGeo) Lookup(context.Context, string, string) (*GeoContext, error) {
	return &GeoContext{UnusualLocation: g.unusual, Country: "ZZ"}, nil
}

type testEnv struct {
	engine   *Engine
	users    *fakeUsers
	audits   *fakeAudit
	notifier *fakeNotifier
	clock    *testClock
	mr       *miniredis.Miniredis
	rdb      *redis.Client
}

func cheapArgon2() password.Argon2Params {
	return password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newTestEnv(t *testing.T, configure func(*Config), extra ...func(*Builder)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = testSecret
	cfg.Password.Argon2 = cheapArgon2()
	cfg.Audit.Enabled = false

	if configure != nil {
		configure(&cfg)
	}

	env := &testEnv{
		users:    newFakeUsers(),
		audits:   &fakeAudit{},
		notifier: &fakeNotifier{},
		clock:    newTestClock(),
		mr:       mr,
		rdb:      rdb,
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(env.users).
		WithAuditStore(env.audits).
		WithNotifier(env.notifier).
		WithClock(env.clock.Now)
	for _, fn := range extra {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// register creates a verified account and returns its id.
func (env *testEnv) register(t *testing.T, email, pw string) string {
	t.Helper()
	res, err := env.engine.Register(context.Background(), RegisterInput{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	if err := env.users.MarkEmailVerified(context.Background(), res.UserID); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}
	return res.UserID
}

func (env *testEnv) login(t *testing.T, email, pw string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	if res.TwoFactorRequired {
		t.Fatalf("Login(%s) unexpectedly required two-factor", email)
	}
	return res
}

func expectKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %q, got %q (err=%v)", want, got, err)
	}
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
