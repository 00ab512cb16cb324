package blogauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OmorFaruk63/blogauth/internal/limiters"
	internalflows "github.com/OmorFaruk63/blogauth/internal/flows"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Register creates a password account with the default role and sends a
// verification email. The account cannot sign in until the email is
// confirmed.
//
// Errors: *ValidationError for bad input, ErrAccountExists when a verified
// account owns the email, ErrAccountPendingVerification when an unverified
// one does, ErrRateLimited when the per-IP budget is spent. Email delivery
// failures are logged and do not fail registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.accounts == nil || e.tokens == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.validateRegistration(req); err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", normalizeEmail(req.Email), err, nil)
		return nil, err
	}
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)

	if err := e.registerThrottle.Enforce(ctx, "", clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrThrottled) {
			e.emitRateLimit(ctx, "register", email)
			return nil, ErrRateLimited
		}
		return nil, err
	}

	existing, err := e.accounts.FindAccountByEmail(ctx, email)
	switch {
	case err == nil:
		e.metricInc(MetricAccountCreationDuplicate)
		if existing.EmailVerified() {
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, existing.ID, email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, existing.ID, email, ErrAccountPendingVerification, nil)
		return nil, ErrAccountPendingVerification
	case !isNotFound(err):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := e.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := e.now()
	account := &Account{
		ID:           id.String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         e.config.Registration.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", email, err, nil)
		return nil, fmt.Errorf("create account: %w", err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, account.ID, email, nil, func() map[string]string {
		return map[string]string{"role": string(account.Role)}
	})

	if _, err := internalflows.RunIssueVerification(ctx, internalflows.VerificationTarget{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
	}, false, e.verificationFlowDeps()); err != nil {
		e.log().Warn("verification token not issued at registration",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	return &RegisterResult{
		Account:  account,
		Redirect: e.config.Registration.RedirectPath,
	}, nil
}

// CreateAccount inserts a verified password account with an explicit role.
// It backs operator tooling such as bootstrapping the first admin and skips
// the registration throttle and email.
func (e *Engine) CreateAccount(ctx context.Context, req RegisterRequest, role Role) (*Account, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if !role.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"role": "is not a known role"}}
	}
	if err := e.validateRegistration(req); err != nil {
		return nil, err
	}

	hash, err := e.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := e.now()
	account := &Account{
		ID:              id.String(),
		Email:           normalizeEmail(req.Email),
		Name:            strings.TrimSpace(req.Name),
		PasswordHash:    hash,
		Role:            role,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, account.ID, account.Email, nil, func() map[string]string {
		return map[string]string{"role": string(role), "source": "operator"}
	})
	return account, nil
}
