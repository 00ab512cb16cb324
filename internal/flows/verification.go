package flows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// VerificationTarget is the account a verification email is issued for.
type VerificationTarget struct {
	AccountID string
	Email     string
	Name      string
}

type VerificationMetrics struct {
	EmailVerificationRequest int
	EmailVerificationSuccess int
	EmailVerificationFailure int
	EmailVerificationExpired int
	EmailDeliveryFailure     int
}

type VerificationEvents struct {
	EmailVerificationRequest string
	EmailVerificationConfirm string
	EmailDeliveryFailure     string
}

type VerificationErrors struct {
	EngineNotReady      error
	VerificationInvalid error
	VerificationExpired error
	AccountNotFound     error
}

// VerificationDeps wires the verification gate and link confirmation.
type VerificationDeps struct {
	Tokens TokenDeps

	ResendLimit  int
	ResendWindow time.Duration

	Now    func() time.Time
	Logger *zap.Logger

	// Allow is the resend limiter, consulted with key "verify:<email>".
	Allow             func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	MarkEmailVerified func(ctx context.Context, email string, at time.Time) error
	BuildURL          func(email, token string) string
	Send              func(ctx context.Context, msg EmailMessage) error

	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit func(ctx context.Context, scope, email string)

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

// VerifyKey is the resend limiter key for email.
func VerifyKey(email string) string {
	return "verify:" + email
}

// RunIssueVerification mints and emails a verification token for target.
// With throttled set, the resend limiter is consulted first and a denial
// issues nothing. It reports whether a token was issued. Delivery failures
// are logged and swallowed: the stored token stays valid.
func RunIssueVerification(ctx context.Context, target VerificationTarget, throttled bool, deps VerificationDeps) (bool, error) {
	normalizeVerificationDeps(&deps)

	if !deps.Tokens.ready() || deps.Send == nil || deps.BuildURL == nil {
		return false, deps.Errors.EngineNotReady
	}

	if throttled {
		if deps.Allow == nil {
			return false, deps.Errors.EngineNotReady
		}
		allowed, err := deps.Allow(ctx, VerifyKey(target.Email), deps.ResendLimit, deps.ResendWindow)
		if err != nil {
			deps.Logger.Warn("verification resend limiter unavailable",
				zap.String("email", target.Email),
				zap.Error(err),
			)
			return false, err
		}
		if !allowed {
			deps.EmitRateLimit(ctx, "email_verification_resend", target.Email)
			return false, nil
		}
	}

	value, record, err := deps.Tokens.issue(ctx, target.Email, deps.Now())
	if err != nil {
		deps.MetricInc(deps.Metrics.EmailVerificationFailure)
		deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, false, target.AccountID, target.Email, err, func() map[string]string {
			return map[string]string{"reason": "token_store"}
		})
		return false, err
	}

	deps.MetricInc(deps.Metrics.EmailVerificationRequest)
	deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, true, target.AccountID, target.Email, nil, func() map[string]string {
		return map[string]string{"throttled": boolString(throttled)}
	})

	msg := EmailMessage{
		To:        target.Email,
		Name:      target.Name,
		URL:       deps.BuildURL(target.Email, value),
		ExpiresAt: record.ExpiresAt,
	}
	if err := deps.Send(ctx, msg); err != nil {
		deps.MetricInc(deps.Metrics.EmailDeliveryFailure)
		deps.EmitAudit(ctx, deps.Events.EmailDeliveryFailure, false, target.AccountID, target.Email, err, func() map[string]string {
			return map[string]string{"kind": "verification"}
		})
		deps.Logger.Warn("verification email delivery failed",
			zap.String("email", target.Email),
			zap.Error(err),
		)
	}
	return true, nil
}

// RunConfirmEmailVerification consumes the (email, token) pair and marks the
// account verified. A missing pair is VerificationInvalid. An expired pair is
// removed and reported once as VerificationExpired; later attempts find
// nothing and report VerificationInvalid.
func RunConfirmEmailVerification(ctx context.Context, email, token string, deps VerificationDeps) error {
	normalizeVerificationDeps(&deps)

	if !deps.Tokens.ready() || deps.MarkEmailVerified == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.EmailVerificationFailure)
		deps.EmitAudit(ctx, deps.Events.EmailVerificationConfirm, false, "", email, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if email == "" || token == "" {
		return fail(deps.Errors.VerificationInvalid, "missing_parameters")
	}
	if !deps.Tokens.ValidToken(token) {
		return fail(deps.Errors.VerificationInvalid, "malformed_token")
	}

	record, err := deps.Tokens.ConsumeToken(ctx, email, deps.Tokens.HashToken(token))
	if err != nil {
		if errors.Is(err, deps.Tokens.NotFound) {
			return fail(deps.Errors.VerificationInvalid, "not_found")
		}
		return fail(err, "token_store")
	}

	now := deps.Now()
	if !record.ExpiresAt.After(now) {
		deps.MetricInc(deps.Metrics.EmailVerificationExpired)
		return fail(deps.Errors.VerificationExpired, "expired")
	}

	if err := deps.MarkEmailVerified(ctx, email, now); err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return fail(deps.Errors.VerificationInvalid, "account_missing")
		}
		return fail(err, "account_store")
	}

	deps.MetricInc(deps.Metrics.EmailVerificationSuccess)
	deps.EmitAudit(ctx, deps.Events.EmailVerificationConfirm, true, "", email, nil, nil)
	return nil
}

func normalizeVerificationDeps(deps *VerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, string) {}
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
