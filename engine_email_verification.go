package blogauth

import (
	"context"
	"time"

	"github.com/OmorFaruk63/blogauth/internal"
	internalflows "github.com/OmorFaruk63/blogauth/internal/flows"
)

// ConfirmEmailVerification consumes the token from a verification link and
// marks the account verified.
//
// It returns ErrVerificationInvalid for unknown, reused or malformed tokens
// and ErrVerificationExpired the first time an expired token is presented.
// The expired token is deleted, so presenting it again is invalid.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, email, token string) error {
	if e == nil || e.accounts == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunConfirmEmailVerification(ctx, normalizeEmail(email), token, e.verificationFlowDeps())
}

// ResendVerification runs the verification gate for email outside of a
// sign-in attempt. Unknown and already-verified addresses are a silent
// no-op, and the resend limit applies.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	email = normalizeEmail(email)
	acc, err := e.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if acc.EmailVerified() {
		return nil
	}
	_, err = internalflows.RunIssueVerification(ctx, internalflows.VerificationTarget{
		AccountID: acc.ID,
		Email:     acc.Email,
		Name:      acc.Name,
	}, true, e.verificationFlowDeps())
	return err
}

func (e *Engine) verificationFlowDeps() internalflows.VerificationDeps {
	cfg := e.config.EmailVerification
	return internalflows.VerificationDeps{
		Tokens:       e.tokenFlowDeps(cfg.TokenTTL),
		ResendLimit:  cfg.ResendLimit,
		ResendWindow: cfg.ResendWindow,
		Now:          e.now,
		Logger:       e.log(),
		Allow: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
			if e.limiter == nil {
				return false, ErrEngineNotReady
			}
			return e.limiter.Allow(ctx, key, limit, window)
		},
		MarkEmailVerified: func(ctx context.Context, email string, at time.Time) error {
			return e.accounts.MarkEmailVerified(ctx, email, at)
		},
		BuildURL: func(email, token string) string {
			return e.buildLink(cfg.Path, email, token)
		},
		Send: func(ctx context.Context, msg internalflows.EmailMessage) error {
			return e.sendMail(ctx, msg, e.notifierOrNop().SendVerificationEmail)
		},
		MetricInc:     func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics: internalflows.VerificationMetrics{
			EmailVerificationRequest: int(MetricEmailVerificationRequest),
			EmailVerificationSuccess: int(MetricEmailVerificationSuccess),
			EmailVerificationFailure: int(MetricEmailVerificationFailure),
			EmailVerificationExpired: int(MetricEmailVerificationExpired),
			EmailDeliveryFailure:     int(MetricEmailDeliveryFailure),
		},
		Events: internalflows.VerificationEvents{
			EmailVerificationRequest: auditEventEmailVerificationRequest,
			EmailVerificationConfirm: auditEventEmailVerificationConfirm,
			EmailDeliveryFailure:     auditEventEmailDeliveryFailure,
		},
		Errors: internalflows.VerificationErrors{
			EngineNotReady:      ErrEngineNotReady,
			VerificationInvalid: ErrVerificationInvalid,
			VerificationExpired: ErrVerificationExpired,
			AccountNotFound:     ErrAccountNotFound,
		},
	}
}

// tokenFlowDeps adapts the TokenStore to the flow token lifecycle.
func (e *Engine) tokenFlowDeps(ttl time.Duration) internalflows.TokenDeps {
	return internalflows.TokenDeps{
		TTL: ttl,
		NewToken: func() (string, string, error) {
			value, err := internal.NewTokenValue()
			if err != nil {
				return "", "", err
			}
			return value, internal.HashTokenValue(value), nil
		},
		HashToken:  internal.HashTokenValue,
		ValidToken: internal.ValidTokenValue,
		SaveToken: func(ctx context.Context, record internalflows.TokenRecord) error {
			return e.tokens.SaveToken(ctx, Token{
				Identifier: record.Identifier,
				Hash:       record.Hash,
				ExpiresAt:  record.ExpiresAt,
				CreatedAt:  e.now(),
			})
		},
		ConsumeToken: func(ctx context.Context, identifier, hash string) (internalflows.TokenRecord, error) {
			tok, err := e.tokens.ConsumeToken(ctx, identifier, hash)
			if err != nil {
				return internalflows.TokenRecord{}, err
			}
			return internalflows.TokenRecord{
				Identifier: tok.Identifier,
				Hash:       tok.Hash,
				ExpiresAt:  tok.ExpiresAt,
			}, nil
		},
		PurgeTokens: e.tokens.PurgeTokens,
		NotFound:    ErrTokenNotFound,
	}
}
