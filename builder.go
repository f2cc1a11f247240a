package authcore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/authcore"

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users      UserStore
	sessions   session.Store
	revocation token.RevocationIndex
	hasher     password.Hasher

	auditStore AuditStore
	auditSink  AuditSink

	notifier  Notifier
	federated FederatedVerifier
	geo       GeoLocator

	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client backing the default session store and
// revocation index.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithSessionStore overrides the Redis session store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

// WithRevocationIndex overrides the Redis revocation index. The index must
// be shared by every Engine instance serving the same users.
func (b *Builder) WithRevocationIndex(index token.RevocationIndex) *Builder {
	b.revocation = index
	return b
}

func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditStore(store AuditStore) *Builder {
	b.auditStore = store
	return b
}

// WithAuditSink sets the asynchronous sink fed by the audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithFederatedVerifier(v FederatedVerifier) *Builder {
	b.federated = v
	return b
}

func (b *Builder) WithGeoLocator(g GeoLocator) *Builder {
	b.geo = g
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides time.Now for the Engine, its tokens and the default
// session store.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewRedisStore(b.redis, "as", session.WithClock(now))
	}

	index := b.revocation
	if index == nil {
		if b.redis == nil {
			return nil, errors.New("revocation index or redis client required")
		}
		index = revocation.NewRedis(b.redis)
	}

	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(cfg.Password.Argon2)
		if err != nil {
			return nil, fmt.Errorf("password hasher: %w", err)
		}
		hasher = password.NewChain(argon)
	}

	tc := cfg.tokenConfig()
	tc.Now = now
	tokens, err := token.NewManager(tc, index)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	dummy, err := hasher.Hash("authcore-timing-equalizer-0")
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewSlogSink(logger)
	}

	e := &Engine{
		config:     cfg,
		users:      b.users,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		dummyHash:  dummy,
		auditStore: b.auditStore,
		dispatcher: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		notifier:  b.notifier,
		federated: b.federated,
		geo:       b.geo,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		tracer:    tp.Tracer(tracerName),
		now:       now,
	}
	e.flows = e.newFlowService()

	b.built = true
	return e, nil
}
