package config

import (
	"fmt"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/mailer"
	"github.com/OmorFaruk63/blogauth/oauth"
)

// EngineConfig maps the server settings onto blogauth.Config, starting from
// blogauth.DefaultConfig.
func (c *Config) EngineConfig() (blogauth.Config, error) {
	cfg := blogauth.DefaultConfig()

	cfg.App.BaseURL = c.App.BaseURL

	cfg.JWT.SigningMethod = c.JWT.SigningMethod
	if c.JWT.SessionTTL > 0 {
		cfg.JWT.SessionTTL = c.JWT.SessionTTL
	}
	if c.JWT.Issuer != "" {
		cfg.JWT.Issuer = c.JWT.Issuer
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
	default:
		priv, err := DecodeKey(c.JWT.PrivateKey)
		if err != nil {
			return blogauth.Config{}, fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
		}
		pub, err := DecodeKey(c.JWT.PublicKey)
		if err != nil {
			return blogauth.Config{}, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	}

	s := c.Security
	if s.LockoutMaxAttempts > 0 {
		cfg.Lockout.MaxAttempts = s.LockoutMaxAttempts
	}
	if s.LockoutDuration > 0 {
		cfg.Lockout.Duration = s.LockoutDuration
	}
	if s.VerificationTokenTTL > 0 {
		cfg.EmailVerification.TokenTTL = s.VerificationTokenTTL
	}
	if s.ResetTokenTTL > 0 {
		cfg.PasswordReset.TokenTTL = s.ResetTokenTTL
	}
	if s.VerifyResendLimit > 0 {
		cfg.EmailVerification.ResendLimit = s.VerifyResendLimit
	}
	if s.VerifyResendWindow > 0 {
		cfg.EmailVerification.ResendWindow = s.VerifyResendWindow
	}

	if c.SMTP.Timeout > 0 {
		cfg.Mail.SendTimeout = c.SMTP.Timeout
	}
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency
	cfg.Audit.Enabled = c.Audit.Enabled

	return cfg, nil
}

// MailerConfig maps the SMTP settings.
func (c *Config) MailerConfig() mailer.Config {
	return mailer.Config{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		FromName: c.SMTP.FromName,
		TLS:      c.SMTP.TLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// GoogleOAuthConfig maps the Google settings.
func (c *Config) GoogleOAuthConfig() oauth.GoogleConfig {
	return oauth.GoogleConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.GoogleRedirectURL(),
	}
}
