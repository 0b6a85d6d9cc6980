package vauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vendo-labs/vauth/attempt"
	"github.com/vendo-labs/vauth/internal/audit"
	"github.com/vendo-labs/vauth/jwt"
	"github.com/vendo-labs/vauth/mailer"
	"github.com/vendo-labs/vauth/mfa"
	"github.com/vendo-labs/vauth/password"
	"github.com/vendo-labs/vauth/session"
	"github.com/vendo-labs/vauth/token"
)

// Builder assembles an Engine. Redis, a UserStore and a Mailer are
// required; everything else has defaults.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     UserStore
	gateway   Mailer
	logger    *zap.Logger
	auditSink audit.Sink

	built bool
}

// New starts a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the Redis client backing sessions, verification
// tokens and the lockout tracker.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore supplies the credential store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithMailer supplies the outbound email gateway.
func (b *Builder) WithMailer(gateway Mailer) *Builder {
	b.gateway = gateway
	return b
}

// WithLogger supplies a structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink supplies the audit destination. Without one, enabled
// audit logs through the engine logger.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the Engine. A Builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}
	if b.gateway == nil {
		return nil, errors.New("mailer is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessSecret:  b.config.JWT.AccessSecret,
		RefreshSecret: b.config.JWT.RefreshSecret,
		AccessTTL:     b.config.JWT.AccessTTL,
		RefreshTTL:    b.config.JWT.RefreshTTL,
		Issuer:        b.config.JWT.Issuer,
		Audience:      b.config.JWT.Audience,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password.Cost)
	if err != nil {
		return nil, err
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewZapSink(logger.Named("audit"))
	}

	e := &Engine{
		config:   b.config,
		users:    b.users,
		sessions: session.NewStore(b.redis, b.config.Session.RedisPrefix, b.config.Session.Lifetime),
		tokens:   token.NewStore(b.redis, b.config.Verification.RedisPrefix, b.config.Verification.TokenLength),
		attempts: attempt.NewTracker(b.redis, b.config.Lockout.RedisPrefix, b.config.Lockout.MaxAttempts, b.config.Lockout.BlockDuration),
		jwt:      jwtManager,
		hasher:   hasher,
		mfa:      mfa.NewProvisioner(b.config.MFA.Issuer, b.config.MFA.QRSize),
		mail:     mailer.NewSender(b.gateway, b.config.Mail.AppName, b.config.Mail.ClientURL),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, sink),
		metrics: NewMetrics(b.config.Metrics),
		logger:  logger,
	}

	b.built = true
	return e, nil
}
