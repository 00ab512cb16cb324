package blogauth

import (
	"context"
	"errors"

	"github.com/OmorFaruk63/blogauth/internal/limiters"
	internalflows "github.com/OmorFaruk63/blogauth/internal/flows"
)

// RequestPasswordReset emails a one-hour reset link when an account owns
// email. The result is the same whether or not the account exists; only a
// nil Engine or an unwired store produces an error.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunRequestPasswordReset(ctx, normalizeEmail(email), e.passwordResetFlowDeps())
}

// ResetPassword sets newPassword for the owner of a valid reset token and
// invalidates every token outstanding for email. It returns a
// *ValidationError for a policy violation and ErrPasswordResetInvalid for an
// unknown, reused or expired token.
func (e *Engine) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if e == nil || e.accounts == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunConfirmPasswordReset(ctx, normalizeEmail(email), token, newPassword, e.passwordResetFlowDeps())
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	cfg := e.config.PasswordReset
	return internalflows.PasswordResetDeps{
		Tokens: e.tokenFlowDeps(cfg.TokenTTL),
		Now:    e.now,
		Logger: e.log(),
		Throttle: func(ctx context.Context, email string) error {
			err := e.resetThrottle.Enforce(ctx, email, clientIPFromContext(ctx))
			if errors.Is(err, limiters.ErrThrottled) {
				return ErrRateLimited
			}
			return err
		},
		FindAccount: func(ctx context.Context, email string) (internalflows.PasswordResetAccount, error) {
			acc, err := e.accounts.FindAccountByEmail(ctx, email)
			if err != nil {
				return internalflows.PasswordResetAccount{}, err
			}
			return internalflows.PasswordResetAccount{ID: acc.ID, Email: acc.Email, Name: acc.Name}, nil
		},
		ValidatePassword:   e.validateNewPassword,
		HashPassword:       e.hashPassword,
		UpdatePasswordHash: e.accounts.UpdatePasswordHash,
		ResetFailures: func(ctx context.Context, accountID string) error {
			if e.lockout == nil {
				return nil
			}
			return e.lockout.Reset(ctx, accountID)
		},
		BuildURL: func(email, token string) string {
			return e.buildLink(cfg.Path, email, token)
		},
		Send: func(ctx context.Context, msg internalflows.EmailMessage) error {
			return e.sendMail(ctx, msg, e.notifierOrNop().SendPasswordResetEmail)
		},
		MetricInc:     func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			EmailDeliveryFailure:        int(MetricEmailDeliveryFailure),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
			EmailDeliveryFailure: auditEventEmailDeliveryFailure,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:       ErrEngineNotReady,
			PasswordResetInvalid: ErrPasswordResetInvalid,
			AccountNotFound:      ErrAccountNotFound,
			RateLimited:          ErrRateLimited,
		},
	}
}
