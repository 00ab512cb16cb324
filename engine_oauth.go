package blogauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompleteFederatedSignIn signs in the owner of an identity-provider
// profile.
//
// A known (provider, subject) pair signs in its account. Otherwise the
// profile email decides: an account with that email and no federated
// identity is linked, an account that already has one is refused with
// ErrFederatedAccountNotLinked, and a new email creates a password-less
// account. With OAuth.RequireVerifiedEmail set, a profile whose provider
// does not vouch for the email can neither link nor create.
func (e *Engine) CompleteFederatedSignIn(ctx context.Context, profile FederatedProfile) (*LoginResult, error) {
	if e == nil || e.accounts == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	profile.Provider = strings.ToLower(strings.TrimSpace(profile.Provider))
	profile.Subject = strings.TrimSpace(profile.Subject)
	profile.Email = normalizeEmail(profile.Email)
	if profile.Provider == "" || profile.Subject == "" || profile.Email == "" {
		return nil, e.rejectFederated(ctx, profile, ErrFederatedProfileInvalid)
	}

	identity, err := e.accounts.FindFederatedIdentity(ctx, profile.Provider, profile.Subject)
	switch {
	case err == nil:
		return e.signInExistingIdentity(ctx, identity, profile)
	case !isNotFound(err):
		return nil, fmt.Errorf("lookup federated identity: %w", err)
	}

	if e.config.OAuth.RequireVerifiedEmail && !profile.EmailVerified {
		return nil, e.rejectFederated(ctx, profile, ErrFederatedEmailUnverified)
	}

	account, err := e.accounts.FindAccountByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		return e.linkFederatedIdentity(ctx, account, profile)
	case !isNotFound(err):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	return e.createFederatedAccount(ctx, profile)
}

func (e *Engine) signInExistingIdentity(ctx context.Context, identity *FederatedIdentity, profile FederatedProfile) (*LoginResult, error) {
	account, err := e.accounts.FindAccountByID(ctx, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("lookup linked account: %w", err)
	}

	applyProfileTokens(identity, profile)
	if err := e.accounts.UpdateFederatedIdentity(ctx, identity); err != nil {
		e.log().Warn("federated tokens not refreshed",
			zap.String("account_id", account.ID),
			zap.String("provider", profile.Provider),
			zap.Error(err),
		)
	}

	e.metricInc(MetricFederatedSignIn)
	e.emitAudit(ctx, auditEventFederatedSignIn, true, account.ID, account.Email, nil, providerMetadata(profile))
	return e.federatedResult(ctx, account, false, false)
}

func (e *Engine) linkFederatedIdentity(ctx context.Context, account *Account, profile FederatedProfile) (*LoginResult, error) {
	identity, err := e.newIdentity(account.ID, profile)
	if err != nil {
		return nil, err
	}
	if err := e.accounts.LinkFederatedIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrFederatedAccountNotLinked) {
			return nil, e.rejectFederated(ctx, profile, ErrFederatedAccountNotLinked)
		}
		return nil, fmt.Errorf("link federated identity: %w", err)
	}

	// The provider vouched for the address, which proves the same thing a
	// verification link would.
	if !account.EmailVerified() && profile.EmailVerified {
		now := e.now()
		if err := e.accounts.MarkEmailVerified(ctx, account.Email, now); err != nil {
			e.log().Warn("mark email verified after link", zap.String("account_id", account.ID), zap.Error(err))
		} else {
			account.EmailVerifiedAt = &now
		}
	}

	e.metricInc(MetricFederatedLinked)
	e.emitAudit(ctx, auditEventFederatedLinked, true, account.ID, account.Email, nil, providerMetadata(profile))
	return e.federatedResult(ctx, account, true, false)
}

func (e *Engine) createFederatedAccount(ctx context.Context, profile FederatedProfile) (*LoginResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := e.now()
	account := &Account{
		ID:        id.String(),
		Email:     profile.Email,
		Name:      strings.TrimSpace(profile.Name),
		Role:      e.config.Registration.DefaultRole,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profile.EmailVerified {
		account.EmailVerifiedAt = &now
	}

	identity, err := e.newIdentity(account.ID, profile)
	if err != nil {
		return nil, err
	}
	if err := e.accounts.CreateAccountWithIdentity(ctx, account, identity); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, e.rejectFederated(ctx, profile, ErrFederatedAccountNotLinked)
		}
		return nil, fmt.Errorf("create federated account: %w", err)
	}

	e.metricInc(MetricFederatedAccountCreated)
	e.emitAudit(ctx, auditEventFederatedAccountCreated, true, account.ID, account.Email, nil, providerMetadata(profile))
	return e.federatedResult(ctx, account, false, true)
}

func (e *Engine) federatedResult(ctx context.Context, account *Account, linked, created bool) (*LoginResult, error) {
	token, expires, err := e.IssueSession(ctx, account)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Account:      account,
		SessionToken: token,
		ExpiresAt:    expires,
		Linked:       linked,
		Created:      created,
	}, nil
}

func (e *Engine) newIdentity(accountID string, profile FederatedProfile) (*FederatedIdentity, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	identity := &FederatedIdentity{
		ID:        id.String(),
		AccountID: accountID,
		Provider:  profile.Provider,
		Subject:   profile.Subject,
		CreatedAt: e.now(),
	}
	applyProfileTokens(identity, profile)
	return identity, nil
}

func (e *Engine) rejectFederated(ctx context.Context, profile FederatedProfile, err error) error {
	e.metricInc(MetricFederatedRejected)
	e.emitAudit(ctx, auditEventFederatedRejected, false, "", profile.Email, err, providerMetadata(profile))
	return err
}

func applyProfileTokens(identity *FederatedIdentity, profile FederatedProfile) {
	identity.AccessToken = profile.AccessToken
	if profile.RefreshToken != "" {
		identity.RefreshToken = profile.RefreshToken
	}
	identity.IDToken = profile.IDToken
	identity.TokenType = profile.TokenType
	identity.ExpiresAt = profile.ExpiresAt
}

func providerMetadata(profile FederatedProfile) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"provider": profile.Provider}
	}
}
