// Command authcore-server serves the authcore Engine over HTTP.
//
// Configuration comes from the environment (and an optional .env file); see
// internal/config. Without DATABASE_URL users and audit events live in
// memory, and without REDIS_URL an embedded miniredis backs sessions,
// revocation and rate limits. Both fallbacks are refused in production.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authcore/internal/config"
)

const purgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authcore-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	logPosture(logger, a)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if a.purger != nil {
		g.Go(func() error {
			a.purgeLoop(gctx, purgeInterval)
			return nil
		})
	}

	return g.Wait()
}

func logPosture(logger *slog.Logger, a *app) {
	r := a.engine.SecurityReport()
	logger.Info("security posture",
		"signing", r.SigningAlgorithm,
		"access_ttl", r.AccessTTL.String(),
		"session_lifetime", r.SessionLifetime.String(),
		"lockout", r.LockoutActive,
		"email_verification_required", r.EmailVerificationRequired,
		"audit_persisted", r.AuditPersisted,
		"audit_streamed", r.AuditStreamed,
	)
	for _, w := range r.Warnings {
		logger.Warn("security posture", "warning", w)
	}
}
