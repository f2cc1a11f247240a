package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore/internal/rate"
	exportprom "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
)

func newRouter(a *app) http.Handler {
	h := &handler{
		engine:       a.engine,
		exposeTokens: !a.cfg.Production(),
	}
	limit := func(rule rate.Rule) func(http.Handler) http.Handler {
		return middleware.RateLimit(a.limiter, rule, a.logger)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			a.logger.Warn("health check failed", "err", err)
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", exportprom.Handler(a.engine))

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(middleware.Throttle(a.cfg.ThrottleRPS, a.cfg.ThrottleBurst))
		r.Use(middleware.ClientContext)

		r.With(limit(rate.RegisterRule)).Post("/register", h.register)
		r.With(limit(rate.LoginRule)).Post("/login", h.login)
		r.With(limit(rate.LoginRule)).Post("/login/2fa", h.loginTwoFactor)
		r.Post("/refresh", h.refresh)
		r.With(limit(rate.PasswordForgotRule)).Post("/password/forgot", h.passwordForgot)
		r.Post("/password/reset", h.passwordReset)
		r.Post("/email/verify", h.emailVerify)
		r.Post("/guest", h.guest)
		r.Get("/session", h.session)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(a.engine))
			r.Post("/logout", h.logout)
			r.Post("/logout-all", h.logoutAll)
			r.Get("/sessions", h.sessions)
			r.Post("/password/change", h.passwordChange)
			r.Post("/email/resend", h.emailResend)
			r.Post("/2fa/setup", h.twoFactorSetup)
			r.Post("/2fa/enable", h.twoFactorEnable)
			r.Post("/2fa/disable", h.twoFactorDisable)
			r.Delete("/account", h.deleteAccount)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				logger.ErrorContext(r.Context(), "http request", fields...)
			case status >= 400:
				logger.WarnContext(r.Context(), "http request", fields...)
			default:
				logger.InfoContext(r.Context(), "http request", fields...)
			}
		})
	}
}
