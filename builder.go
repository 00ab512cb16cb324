package blogauth

import (
	"errors"
	"time"

	internalaudit "github.com/OmorFaruk63/blogauth/internal/audit"
	"github.com/OmorFaruk63/blogauth/internal/limiters"
	"github.com/OmorFaruk63/blogauth/internal/rate"
	"github.com/OmorFaruk63/blogauth/jwt"
	"github.com/OmorFaruk63/blogauth/password"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config

	accounts AccountStore
	tokens   TokenStore
	limiter  RateLimiter
	notifier Notifier

	auditSink AuditSink
	logger    *zap.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the account and federated identity store. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithTokenStore sets the verification and reset token store. Required.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithRateLimiter sets the limiter behind the verification resend cap and
// the request throttles. Without one, a process-local limiter is used, so
// limits are per process.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.limiter = limiter
	return b
}

// WithNotifier sets the email transport. Without one, emails are logged and
// dropped.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination of audit events. Audit.Enabled must
// also be set for events to flow.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine's logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now, mainly for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.tokens == nil {
		return nil, errors.New("token store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := b.limiter
	if limiter == nil {
		limiter = rate.NewMemory(rate.WithClock(clock))
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		tokens:   b.tokens,
		limiter:  limiter,
		notifier: b.notifier,
		logger:   logger.Named("blogauth"),
		clock:    clock,
	}

	// -------- LOCKOUT + THROTTLES --------
	engine.lockout = limiters.NewLockoutLimiter(b.accounts, limiters.LockoutConfig{
		Threshold: cfg.Lockout.MaxAttempts,
		Duration:  cfg.Lockout.Duration,
	})
	engine.resetThrottle = limiters.NewThrottle(limiter, limiters.ThrottleConfig{
		Scope:                    "password_reset",
		EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
		MaxAttempts:              cfg.PasswordReset.MaxRequests,
		Window:                   cfg.PasswordReset.RequestWindow,
	})
	engine.registerThrottle = limiters.NewThrottle(limiter, limiters.ThrottleConfig{
		Scope:            "register",
		EnableIPThrottle: cfg.Registration.EnableIPThrottle,
		MaxAttempts:      cfg.Registration.MaxAttempts,
		Window:           cfg.Registration.Cooldown,
	})

	// -------- AUDIT + METRICS --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// -------- SESSIONS --------
	jm, err := jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.JWT.SessionTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
