package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/internal/config"
	"github.com/OmorFaruk63/blogauth/mailer"
	"github.com/OmorFaruk63/blogauth/store/redisstore"
	"github.com/OmorFaruk63/blogauth/store/sqlstore"
	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the process-wide dependencies of every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store  *sqlstore.Store
	redis  *redis.Client
	engine *blogauth.Engine
}

func databaseDriver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return sqlstore.DriverPostgres
	}
	return sqlstore.DriverSQLite
}

func openStore(cfg *config.Config, logger *zap.Logger) (*sqlstore.Store, error) {
	return sqlstore.Open(sqlstore.Options{
		Driver:          databaseDriver(cfg.Database.URL),
		DSN:             cfg.Database.URL,
		Logger:          logger,
		SlowQuery:       cfg.Database.SlowQuery,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

// openApp connects the stores and builds the engine. The caller must Close
// the returned app.
func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		a.Close()
		return nil, err
	}

	b := blogauth.New().
		WithConfig(engineCfg).
		WithAccountStore(store).
		WithTokenStore(store).
		WithLogger(logger)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b = b.
			WithTokenStore(redisstore.NewTokenStore(a.redis, cfg.Redis.Prefix)).
			WithRateLimiter(redisstore.NewRateLimiter(a.redis, cfg.Redis.Prefix+":rl"))
	}

	if cfg.SMTP.Host != "" {
		m, err := mailer.NewSMTP(cfg.MailerConfig(), mailer.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, err
		}
		b = b.WithNotifier(m)
	} else {
		logger.Warn("SMTP_HOST not set; account emails are logged and dropped")
	}

	if cfg.Audit.Enabled {
		b = b.WithAuditSink(blogauth.NewZapAuditSink(logger.Named("audit")))
	}

	engine, err := b.Build()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

// seedAdmin creates the configured administrator once. An existing account
// with that email is left alone.
func (a *app) seedAdmin(ctx context.Context) error {
	if a.cfg.Admin.Email == "" {
		return nil
	}
	acc, err := a.engine.CreateAccount(ctx, blogauth.RegisterRequest{
		Name:     "Administrator",
		Email:    a.cfg.Admin.Email,
		Password: a.cfg.Admin.Password,
	}, blogauth.RoleAdmin)
	switch {
	case err == nil:
		a.logger.Info("admin account created", zap.String("account_id", acc.ID))
		return nil
	case errors.Is(err, blogauth.ErrAccountExists):
		return nil
	default:
		return fmt.Errorf("seed admin: %w", err)
	}
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func initSentry(cfg *config.Config) error {
	if cfg.Sentry.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Env,
		AttachStacktrace: true,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
}
