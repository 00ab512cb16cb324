package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

type Report struct {
	SigningAlgorithm        string
	SessionTTL              time.Duration
	Argon2                  PasswordReport
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
	// Warnings lists settings weaker than the shipped defaults.
	Warnings []string
}

type ReportInput struct {
	SigningAlgorithm        string
	SessionTTL              time.Duration
	Password                PasswordReport
	MaxLoginAttempts        int
	LockoutDuration         time.Duration
	VerificationTokenTTL    time.Duration
	ResendLimit             int
	ResendWindow            time.Duration
	ResetTokenTTL           time.Duration
	ResetIdentifierThrottle bool
	ResetIPThrottle         bool
	RegisterIPThrottle      bool
	FederatedRequiresVerify bool
	AuditEnabled            bool
}

func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:        input.SigningAlgorithm,
		SessionTTL:              input.SessionTTL,
		Argon2:                  input.Password,
		LockoutThreshold:        input.MaxLoginAttempts,
		LockoutDuration:         input.LockoutDuration,
		VerificationTokenTTL:    input.VerificationTokenTTL,
		ResendLimit:             input.ResendLimit,
		ResendWindow:            input.ResendWindow,
		ResetTokenTTL:           input.ResetTokenTTL,
		ResetThrottleActive:     input.ResetIdentifierThrottle || input.ResetIPThrottle,
		RegisterThrottleActive:  input.RegisterIPThrottle,
		FederatedRequiresVerify: input.FederatedRequiresVerify,
		AuditEnabled:            input.AuditEnabled,
	}

	if input.SigningAlgorithm == "hs256" {
		r.Warnings = append(r.Warnings, "sessions are signed with a shared secret")
	}
	if input.Password.Memory < 65536 || input.Password.Time < 3 {
		r.Warnings = append(r.Warnings, "argon2 cost is below the default")
	}
	if input.Password.MinLength < 8 {
		r.Warnings = append(r.Warnings, "minimum password length is below 8")
	}
	if input.MaxLoginAttempts > 5 {
		r.Warnings = append(r.Warnings, "lockout threshold is above 5 attempts")
	}
	if input.ResetTokenTTL > time.Hour {
		r.Warnings = append(r.Warnings, "reset tokens live longer than 1h")
	}
	if !r.ResetThrottleActive {
		r.Warnings = append(r.Warnings, "password reset requests are not throttled")
	}
	if !input.FederatedRequiresVerify {
		r.Warnings = append(r.Warnings, "federated sign-in links on unverified provider email")
	}
	return r
}
