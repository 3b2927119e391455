package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be used once.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	logger       Logger
	jwtManager   *jwt.Manager

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the token store client. Single-node, cluster and sentinel
// clients are all accepted. The client must be created with
// ContextTimeoutEnabled, otherwise Build fails: go-redis ignores context
// deadlines on socket I/O without it and Store.OperationTimeout would not
// bound anything.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the external user-record capability used by login,
// client login, refresh and registration.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the Engine logger. The default is [NopLogger].
func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithJWTManager installs a prebuilt signed-token manager, overriding
// Config.JWT.
func (b *Builder) WithJWTManager(m *jwt.Manager) *Builder {
	b.jwtManager = m
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authentication latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Engine].
//
// Build may return an error when validation fails or a required dependency
// is missing. A user provider is optional: without one, only token
// issuance, authentication and logout are available.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if !contextTimeoutEnabled(b.redis) {
		return nil, errors.New("redis client must enable ContextTimeoutEnabled")
	}

	cfg := cloneConfig(b.config)
	if b.auditSink != nil {
		cfg.Audit.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = NopLogger{}
	}

	// -------- TOKEN STORE --------
	store := session.NewStore(b.redis, cfg.Store.OperationTimeout)
	issuer, err := NewIssuer(store, cfg.Token)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		store:        store,
		issuer:       issuer,
		userProvider: b.userProvider,
		logger:       logger,
		metrics:      NewMetrics(cfg.Metrics),
	}
	issuer.metrics = engine.metrics

	// -------- SIGNED FALLBACK --------
	engine.jwtManager = b.jwtManager
	if engine.jwtManager == nil && cfg.JWT.Enabled {
		jm, err := jwt.NewManager(cfg.JWT.managerConfig())
		if err != nil {
			return nil, err
		}
		engine.jwtManager = jm
	}

	engine.verifiers = []flows.Verifier{engine.opaqueVerifier()}
	if engine.jwtManager != nil {
		engine.verifiers = append(engine.verifiers, signedVerifier(engine.jwtManager))
	}

	// -------- RATE LIMITER --------
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Prefix:              cfg.Security.RateLimitPrefix,
		EnableIPThrottle:    cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:    cfg.Security.MaxLoginAttempts,
		LoginWindow:         cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:  cfg.Security.MaxRefreshAttempts,
		RefreshWindow:       cfg.Security.RefreshCooldownDuration,
		MaxRegisterAttempts: cfg.Security.MaxRegisterAttempts,
		RegisterWindow:      cfg.Security.RegisterCooldownDuration,
	})

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}

func contextTimeoutEnabled(client redis.UniversalClient) bool {
	switch c := client.(type) {
	case *redis.Client:
		return c.Options().ContextTimeoutEnabled
	case *redis.ClusterClient:
		return c.Options().ContextTimeoutEnabled
	default:
		return true
	}
}
