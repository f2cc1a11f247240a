package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
)

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// app holds the process-wide dependencies shared by the handlers.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *authcore.Engine
	redis   redis.UniversalClient
	pool    *pgxpool.Pool
	limiter *rate.Limiter
	purger  sessionPurger

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	if err := a.connectRedis(ctx); err != nil {
		return nil, err
	}
	if cfg.RateLimitEnabled {
		a.limiter = rate.New(a.redis, "rl")
	}

	b := authcore.New().
		WithConfig(engineCfg).
		WithRedis(a.redis).
		WithLogger(logger).
		WithNotifier(notify.NewLogger(logger))

	if cfg.DatabaseURL != "" {
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)

		sessions := postgres.NewSessions(pool)
		a.purger = sessions
		b = b.WithUserStore(postgres.NewUsers(pool)).
			WithSessionStore(sessions).
			WithAuditStore(postgres.NewAudit(pool))
	} else {
		logger.Warn("DATABASE_URL not set; users and audit events are kept in memory")
		b = b.WithUserStore(memory.NewUsers()).WithAuditStore(memory.NewAudit())
	}

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		client, err := audit.NewKafkaClient(brokers, cfg.AuditKafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		b = b.WithAuditSink(audit.MultiSink{
			audit.NewSlogSink(logger),
			audit.NewKafkaSink(client, "", logger),
		})
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)
	return a, nil
}

func (a *app) connectRedis(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		a.logger.Warn("REDIS_URL not set; using embedded miniredis", "addr", mr.Addr())
		a.closers = append(a.closers, mr.Close)
		a.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	} else {
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
	}
	client := a.redis
	a.closers = append(a.closers, func() { _ = client.Close() })

	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	return nil
}

// health pings the backing stores.
func (a *app) health(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) purgeLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.purger.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("purge expired sessions", "err", err)
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
