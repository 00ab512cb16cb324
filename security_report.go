package blogauth

import (
	"time"

	"github.com/OmorFaruk63/blogauth/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm        string
	SessionTTL              time.Duration
	Argon2                  PasswordConfigReport
	LockoutThreshold        int
	LockoutDuration         time.Duration
	VerificationTokenTTL    time.Duration
	ResendLimit             int
	ResendWindow            time.Duration
	ResetTokenTTL           time.Duration
	ResetThrottleActive     bool
	RegisterThrottleActive  bool
	FederatedRequiresVerify bool
	AuditEnabled            bool
	Warnings                []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	r := security.BuildReport(security.ReportInput{
		SigningAlgorithm: cfg.JWT.SigningMethod,
		SessionTTL:       cfg.JWT.SessionTTL,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		MaxLoginAttempts:        cfg.Lockout.MaxAttempts,
		LockoutDuration:         cfg.Lockout.Duration,
		VerificationTokenTTL:    cfg.EmailVerification.TokenTTL,
		ResendLimit:             cfg.EmailVerification.ResendLimit,
		ResendWindow:            cfg.EmailVerification.ResendWindow,
		ResetTokenTTL:           cfg.PasswordReset.TokenTTL,
		ResetIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
		ResetIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
		RegisterIPThrottle:      cfg.Registration.EnableIPThrottle,
		FederatedRequiresVerify: cfg.OAuth.RequireVerifiedEmail,
		AuditEnabled:            cfg.Audit.Enabled,
	})

	return SecurityReport{
		SigningAlgorithm:        r.SigningAlgorithm,
		SessionTTL:              r.SessionTTL,
		Argon2:                  PasswordConfigReport(r.Argon2),
		LockoutThreshold:        r.LockoutThreshold,
		LockoutDuration:         r.LockoutDuration,
		VerificationTokenTTL:    r.VerificationTokenTTL,
		ResendLimit:             r.ResendLimit,
		ResendWindow:            r.ResendWindow,
		ResetTokenTTL:           r.ResetTokenTTL,
		ResetThrottleActive:     r.ResetThrottleActive,
		RegisterThrottleActive:  r.RegisterThrottleActive,
		FederatedRequiresVerify: r.FederatedRequiresVerify,
		AuditEnabled:            r.AuditEnabled,
		Warnings:                r.Warnings,
	}
}
