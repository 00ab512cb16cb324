package flows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PasswordResetAccount is the flow-local account view used by reset flows.
type PasswordResetAccount struct {
	ID    string
	Email string
	Name  string
}

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	EmailDeliveryFailure        int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
	EmailDeliveryFailure string
}

type PasswordResetErrors struct {
	EngineNotReady       error
	PasswordResetInvalid error
	AccountNotFound      error
	RateLimited          error
}

// PasswordResetDeps wires forgot-password and reset-password.
type PasswordResetDeps struct {
	Tokens TokenDeps

	Now    func() time.Time
	Logger *zap.Logger

	// Throttle returns RateLimited when the request budget is spent.
	Throttle func(ctx context.Context, email string) error

	FindAccount        func(ctx context.Context, email string) (PasswordResetAccount, error)
	ValidatePassword   func(password string) error
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, accountID, hash string) error
	ResetFailures      func(ctx context.Context, accountID string) error

	BuildURL func(email, token string) string
	Send     func(ctx context.Context, msg EmailMessage) error

	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit func(ctx context.Context, scope, email string)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset issues and emails a reset token when an account
// owns email. The caller learns nothing about whether it did: every path
// that is not a wiring fault returns nil, and the causes go to the log and
// audit trail.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if !deps.Tokens.ready() || deps.FindAccount == nil || deps.Send == nil || deps.BuildURL == nil {
		return deps.Errors.EngineNotReady
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	if err := deps.Throttle(ctx, email); err != nil {
		if errors.Is(err, deps.Errors.RateLimited) {
			deps.EmitRateLimit(ctx, "password_reset_request", email)
		} else {
			deps.Logger.Warn("password reset throttle unavailable", zap.String("email", email), zap.Error(err))
		}
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", email, err, nil)
		return nil
	}

	account, err := deps.FindAccount(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, "", email, nil, func() map[string]string {
				return map[string]string{"enumeration_safe": "true"}
			})
			return nil
		}
		deps.Logger.Error("password reset lookup failed", zap.String("email", email), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", email, err, nil)
		return nil
	}

	value, record, err := deps.Tokens.issue(ctx, email, deps.Now())
	if err != nil {
		deps.Logger.Error("password reset token not stored", zap.String("account_id", account.ID), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, account.ID, email, err, nil)
		return nil
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, account.ID, email, nil, nil)

	msg := EmailMessage{
		To:        email,
		Name:      account.Name,
		URL:       deps.BuildURL(email, value),
		ExpiresAt: record.ExpiresAt,
	}
	if err := deps.Send(ctx, msg); err != nil {
		deps.MetricInc(deps.Metrics.EmailDeliveryFailure)
		deps.EmitAudit(ctx, deps.Events.EmailDeliveryFailure, false, account.ID, email, err, func() map[string]string {
			return map[string]string{"kind": "password_reset"}
		})
		deps.Logger.Warn("password reset email delivery failed", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// RunConfirmPasswordReset sets a new password for the owner of a valid
// (email, token) pair and then removes every token issued for email.
// The password is validated before the token is touched so a policy
// failure does not burn the link, and a store failure after the token was
// consumed saves it again.
func RunConfirmPasswordReset(ctx context.Context, email, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if !deps.Tokens.ready() || deps.FindAccount == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(accountID string, err error, reason string) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, accountID, email, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(newPassword); err != nil {
			return fail("", err, "password_policy")
		}
	}
	if email == "" || !deps.Tokens.ValidToken(token) {
		return fail("", deps.Errors.PasswordResetInvalid, "malformed_token")
	}

	record, err := deps.Tokens.ConsumeToken(ctx, email, deps.Tokens.HashToken(token))
	if err != nil {
		if errors.Is(err, deps.Tokens.NotFound) {
			return fail("", deps.Errors.PasswordResetInvalid, "not_found")
		}
		return fail("", err, "token_store")
	}
	if !record.ExpiresAt.After(deps.Now()) {
		return fail("", deps.Errors.PasswordResetInvalid, "expired")
	}

	// The token is already gone. Until the password is changed, a failure
	// on our side puts it back so the emailed link keeps working.
	restore := func() {
		if err := deps.Tokens.SaveToken(ctx, record); err != nil {
			deps.Logger.Error("restore reset token", zap.String("email", email), zap.Error(err))
		}
	}

	account, err := deps.FindAccount(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return fail("", deps.Errors.PasswordResetInvalid, "account_missing")
		}
		restore()
		return fail("", err, "account_store")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		restore()
		return fail(account.ID, err, "hash")
	}
	if err := deps.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		restore()
		return fail(account.ID, err, "account_store")
	}

	if err := deps.Tokens.PurgeTokens(ctx, email); err != nil {
		deps.Logger.Error("purge reset tokens", zap.String("email", email), zap.Error(err))
	}
	if deps.ResetFailures != nil {
		if err := deps.ResetFailures(ctx, account.ID); err != nil {
			deps.Logger.Warn("clear lockout after reset", zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, account.ID, email, nil, nil)
	return nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Throttle == nil {
		deps.Throttle = func(context.Context, string) error { return nil }
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
