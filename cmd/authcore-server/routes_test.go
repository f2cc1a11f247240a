package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
)

type testServer struct {
	handler   http.Handler
	stopRedis func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	var once sync.Once
	stopRedis := func() { once.Do(mr.Close) }
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	engineCfg := authcore.DefaultConfig()
	engineCfg.JWT.PrivateKey = []byte("authcore-server-routes-test-key!")
	engineCfg.Password.Argon2 = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	engineCfg.Audit.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(memory.NewUsers()).
		WithAuditStore(memory.NewAudit()).
		WithLogger(logger).
		Build()
	require.NoError(t, err)

	a := &app{
		cfg:     &config.Config{Env: "test", RateLimitEnabled: true},
		logger:  logger,
		engine:  engine,
		redis:   rdb,
		limiter: rate.New(rdb, "rl"),
		closers: []func(){stopRedis, func() { _ = rdb.Close() }, engine.Close},
	}
	t.Cleanup(a.close)
	return &testServer{handler: newRouter(a), stopRedis: stopRedis}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeInto[map[string]string](t, rec)["error"]
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/auth/register", registerRequest{Email: "Frank@Example.com", Password: "tr0ub4dor&3"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeInto[registerResponse](t, rec)
	assert.Equal(t, "frank@example.com", reg.Email)
	require.NotEmpty(t, reg.VerificationToken)

	rec = s.do(t, http.MethodPost, "/v1/auth/email/verify", tokenRequest{Token: reg.VerificationToken}, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/auth/login", loginRequest{Email: "frank@example.com", Password: "tr0ub4dor&3"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeInto[loginResponse](t, rec)
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)

	rec = s.do(t, http.MethodGet, "/v1/auth/session", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info := decodeInto[sessionResponse](t, rec)
	assert.Equal(t, login.SessionID, info.SessionID)
	assert.Equal(t, "authenticated", info.Type)

	rec = s.do(t, http.MethodGet, "/v1/auth/sessions", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeInto[map[string][]sessionResponse](t, rec)["sessions"]
	require.Len(t, list, 1)
	assert.True(t, list[0].Current)

	rec = s.do(t, http.MethodPost, "/v1/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decodeInto[refreshResponse](t, rec)
	assert.Equal(t, login.SessionID, refreshed.SessionID)

	rec = s.do(t, http.MethodPost, "/v1/auth/logout", nil, refreshed.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/auth/session", nil, login.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(authcore.KindSessionExpired), errorKind(t, rec))
}

func TestRegisterConflict(t *testing.T) {
	s := newTestServer(t)
	body := registerRequest{Email: "gina@example.com", Password: "passw0rd-long"}

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/auth/register", body, "").Code)
	rec := s.do(t, http.MethodPost, "/v1/auth/register", body, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(authcore.KindResourceConflict), errorKind(t, rec))
}

func TestInvalidCredentials(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/auth/login", loginRequest{Email: "nobody@example.com", Password: "whatever1"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(authcore.KindInvalidCredentials), errorKind(t, rec))
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	cases := map[string]string{
		"not json":       "{",
		"unknown field":  `{"email":"a@b.io","password":"x","admin":true}`,
		"trailing value": `{"email":"a@b.io","password":"x"} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(authcore.KindValidationFailed), errorKind(t, rec))
		})
	}
}

func TestGuardedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/v1/auth/logout", "/v1/auth/logout-all", "/v1/auth/2fa/setup"} {
		rec := s.do(t, http.MethodPost, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestGuestSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/auth/guest", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	guest := decodeInto[guestResponse](t, rec)
	assert.NotEmpty(t, guest.Token)
	assert.NotEmpty(t, guest.CSRFToken)

	// Guest tokens do not open protected routes.
	rec = s.do(t, http.MethodGet, "/v1/auth/sessions", nil, guest.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordForgotIsSilentForUnknownEmail(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/auth/password/forgot", emailRequest{Email: "ghost@example.com"}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t)
	body := loginRequest{Email: "nobody@example.com", Password: "whatever1"}
	for i := 0; i < rate.LoginRule.Limit; i++ {
		rec := s.do(t, http.MethodPost, "/v1/auth/login", body, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}
	rec := s.do(t, http.MethodPost, "/v1/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.stopRedis()
	rec = s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/v1/auth/guest", nil, "")

	rec := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authcore_")
}
