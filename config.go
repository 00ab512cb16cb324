package blogauth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the full Engine configuration. Start from [DefaultConfig] and
// override fields; [Builder.Build] calls [Config.Validate].
type Config struct {
	App               AppConfig
	JWT               JWTConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Registration      RegistrationConfig
	OAuth             OAuthConfig
	Mail              MailConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

// AppConfig describes where emailed links point.
type AppConfig struct {
	// BaseURL is the public origin, e.g. "https://blog.example.com".
	BaseURL string
}

// JWTConfig configures session tokens.
type JWTConfig struct {
	SessionTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// PasswordConfig holds argon2id parameters and the password policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

// LockoutConfig controls the failed-login lock. After MaxAttempts consecutive
// failures the account is locked for Duration.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// EmailVerificationConfig controls the verification gate.
type EmailVerificationConfig struct {
	TokenTTL     time.Duration
	ResendLimit  int
	ResendWindow time.Duration
	// Path is appended to App.BaseURL to build the link.
	Path string
}

// PasswordResetConfig controls forgot-password tokens.
type PasswordResetConfig struct {
	TokenTTL                 time.Duration
	Path                     string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxRequests              int
	RequestWindow            time.Duration
}

// RegistrationConfig controls sign-up.
type RegistrationConfig struct {
	DefaultRole      Role
	RedirectPath     string
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// OAuthConfig controls federated sign-in.
type OAuthConfig struct {
	// RequireVerifiedEmail rejects profiles whose provider does not vouch for
	// the email before it is used to link or create an account.
	RequireVerifiedEmail bool
}

// MailConfig bounds outbound email.
type MailConfig struct {
	SendTimeout time.Duration
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 5 failed attempts lock for
// 15 minutes, verification tokens live 24 hours, reset tokens 1 hour, and
// verification emails are resent at most twice a minute per address.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			BaseURL: "http://localhost:3000",
		},
		JWT: JWTConfig{
			SessionTTL:    30 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "blogauth",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL:     24 * time.Hour,
			ResendLimit:  2,
			ResendWindow: 60 * time.Second,
			Path:         "/api/auth/verify-email",
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:                 time.Hour,
			Path:                     "/reset-password",
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			MaxRequests:              5,
			RequestWindow:            15 * time.Minute,
		},
		Registration: RegistrationConfig{
			DefaultRole:      RoleUser,
			RedirectPath:     "/verify-email",
			EnableIPThrottle: true,
			MaxAttempts:      10,
			Cooldown:         time.Hour,
		},
		OAuth: OAuthConfig{
			RequireVerifiedEmail: true,
		},
		Mail: MailConfig{
			SendTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	// App
	base, err := url.Parse(c.App.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("App BaseURL must be an absolute URL")
	}

	// JWT
	if c.JWT.SessionTTL <= 0 {
		return errors.New("JWT SessionTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Email verification
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.EmailVerification.ResendLimit < 1 || c.EmailVerification.ResendWindow <= 0 {
		return errors.New("EmailVerification resend limit and window must be > 0")
	}
	if !strings.HasPrefix(c.EmailVerification.Path, "/") {
		return errors.New("EmailVerification Path must start with '/'")
	}

	// Password reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if !strings.HasPrefix(c.PasswordReset.Path, "/") {
		return errors.New("PasswordReset Path must start with '/'")
	}
	if (c.PasswordReset.EnableIdentifierThrottle || c.PasswordReset.EnableIPThrottle) &&
		(c.PasswordReset.MaxRequests < 1 || c.PasswordReset.RequestWindow <= 0) {
		return errors.New("PasswordReset throttle requires MaxRequests and RequestWindow > 0")
	}

	// Registration
	if !c.Registration.DefaultRole.Valid() {
		return errors.New("Registration DefaultRole is not a known role")
	}
	if c.Registration.EnableIPThrottle && (c.Registration.MaxAttempts < 1 || c.Registration.Cooldown <= 0) {
		return errors.New("Registration throttle requires MaxAttempts and Cooldown > 0")
	}

	// Mail
	if c.Mail.SendTimeout <= 0 {
		return errors.New("Mail SendTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
