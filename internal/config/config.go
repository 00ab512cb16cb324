// Package config loads blogauthd server settings from an optional YAML file,
// an optional .env file and the process environment, in that order of
// increasing precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Google   GoogleConfig   `yaml:"google"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sentry   SentryConfig   `yaml:"sentry"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Audit    AuditConfig    `yaml:"audit"`
	Admin    AdminConfig    `yaml:"admin"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`
}

type AppConfig struct {
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	// URL is a postgres:// URL or a sqlite file path / DSN.
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SlowQuery       time.Duration `yaml:"slow_query"`
}

type RedisConfig struct {
	// URL enables the Redis token store and rate limiter when set.
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

type JWTConfig struct {
	SigningMethod string        `yaml:"signing_method"`
	Secret        string        `yaml:"secret"`
	PrivateKey    string        `yaml:"private_key"`
	PublicKey     string        `yaml:"public_key"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	Issuer        string        `yaml:"issuer"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// RedirectURL defaults to BaseURL + /api/auth/oauth/google/callback.
	RedirectURL string `yaml:"redirect_url"`
}

type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	FromName string        `yaml:"from_name"`
	TLS      string        `yaml:"tls"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SecurityConfig struct {
	LockoutMaxAttempts   int           `yaml:"lockout_max_attempts"`
	LockoutDuration      time.Duration `yaml:"lockout_duration"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl"`
	ResetTokenTTL        time.Duration `yaml:"reset_token_ttl"`
	VerifyResendLimit    int           `yaml:"verify_resend_limit"`
	VerifyResendWindow   time.Duration `yaml:"verify_resend_window"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is "json" (default) or "console".
	Format string `yaml:"format"`
}

type SentryConfig struct {
	DSN              string  `yaml:"dsn"`
	TracesSampleRate float64 `yaml:"traces_sample_rate"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Latency bool `yaml:"latency"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AdminConfig seeds an administrator at startup when both fields are set.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Default returns development defaults.
func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		App: AppConfig{BaseURL: "http://localhost:3000"},
		Database: DatabaseConfig{
			URL:             "blogauth.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			SlowQuery:       200 * time.Millisecond,
		},
		Redis: RedisConfig{Prefix: "blogauth"},
		JWT: JWTConfig{
			SigningMethod: "ed25519",
			SessionTTL:    30 * 24 * time.Hour,
			Issuer:        "blogauth",
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Blog",
			TLS:      "mandatory",
			Timeout:  10 * time.Second,
		},
		Security: SecurityConfig{
			LockoutMaxAttempts:   5,
			LockoutDuration:      15 * time.Minute,
			VerificationTokenTTL: 24 * time.Hour,
			ResetTokenTTL:        time.Hour,
			VerifyResendLimit:    2,
			VerifyResendWindow:   60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (skipped when empty), then the dotenv files (missing
// files are ignored; none means ".env"), then applies environment
// overrides. It does not validate.
func Load(path string, dotenv ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	str("APP_ENV", &c.Env)
	str("APP_BASE_URL", &c.App.BaseURL)
	str("HTTP_ADDR", &c.HTTP.Addr)
	flag("HTTP_TRUST_PROXY", &c.HTTP.TrustProxy)

	str("DATABASE_URL", &c.Database.URL)
	num("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_PREFIX", &c.Redis.Prefix)

	str("JWT_SIGNING_METHOD", &c.JWT.SigningMethod)
	str("JWT_SECRET", &c.JWT.Secret)
	str("JWT_PRIVATE_KEY", &c.JWT.PrivateKey)
	str("JWT_PUBLIC_KEY", &c.JWT.PublicKey)
	dur("JWT_SESSION_TTL", &c.JWT.SessionTTL)

	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_REDIRECT_URL", &c.Google.RedirectURL)

	str("SMTP_HOST", &c.SMTP.Host)
	num("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_TLS", &c.SMTP.TLS)
	str("MAIL_FROM", &c.SMTP.From)
	str("MAIL_FROM_NAME", &c.SMTP.FromName)

	num("LOCKOUT_MAX_ATTEMPTS", &c.Security.LockoutMaxAttempts)
	dur("LOCKOUT_DURATION", &c.Security.LockoutDuration)
	dur("VERIFICATION_TOKEN_TTL", &c.Security.VerificationTokenTTL)
	dur("RESET_TOKEN_TTL", &c.Security.ResetTokenTTL)
	num("VERIFY_RESEND_LIMIT", &c.Security.VerifyResendLimit)
	dur("VERIFY_RESEND_WINDOW", &c.Security.VerifyResendWindow)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("SENTRY_DSN", &c.Sentry.DSN)
	flag("METRICS_ENABLED", &c.Metrics.Enabled)
	flag("AUDIT_ENABLED", &c.Audit.Enabled)

	str("ADMIN_EMAIL", &c.Admin.Email)
	str("ADMIN_PASSWORD", &c.Admin.Password)

	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// parseDuration accepts Go durations ("15m") and bare seconds ("60").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Production reports whether APP_ENV is "production".
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks server-level settings. Engine settings are validated again
// by blogauth.Config.Validate when the engine is built.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http addr is required")
	}
	if u, err := url.Parse(c.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_BASE_URL must be an absolute URL, got %q", c.App.BaseURL)
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.Secret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 bytes for hs256")
		}
	case "ed25519":
		if c.JWT.PrivateKey == "" {
			return errors.New("JWT_PRIVATE_KEY is required for ed25519")
		}
	default:
		return fmt.Errorf("unsupported JWT_SIGNING_METHOD %q", c.JWT.SigningMethod)
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return errors.New("MAIL_FROM is required when SMTP_HOST is set")
	}
	if c.Production() && c.SMTP.Host == "" {
		return errors.New("SMTP_HOST is required in production")
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// GoogleRedirectURL returns the configured callback URL or the default one
// under App.BaseURL.
func (c *Config) GoogleRedirectURL() string {
	if c.Google.RedirectURL != "" {
		return c.Google.RedirectURL
	}
	return strings.TrimRight(c.App.BaseURL, "/") + "/api/auth/oauth/google/callback"
}

// DecodeKey turns a configured key into bytes. PEM text is returned as is
// (with literal "\n" sequences expanded); anything else is standard base64.
func DecodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "-----BEGIN") {
		return []byte(strings.ReplaceAll(value, `\n`, "\n")), nil
	}
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("key is neither PEM nor base64: %w", err)
	}
	return key, nil
}
