package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// CredentialOutcome classifies a credential check.
type CredentialOutcome string

const (
	OutcomeSuccess            CredentialOutcome = "success"
	OutcomeInvalidCredentials CredentialOutcome = "invalid_credentials"
	OutcomeAccountLocked      CredentialOutcome = "account_locked"
	OutcomeEmailNotVerified   CredentialOutcome = "email_not_verified"
)

// CredentialAccount is the flow-local account view used by sign-in.
type CredentialAccount struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	LockedUntil   *time.Time
}

// CredentialResult is returned by RunVerifyCredentials. Account is nil when
// no account matched.
type CredentialResult struct {
	Outcome     CredentialOutcome
	Account     *CredentialAccount
	LockedUntil *time.Time
}

type CredentialMetrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginLocked          int
	LoginUnverified      int
	LockoutTriggered     int
	PasswordHashUpgraded int
}

type CredentialEvents struct {
	LoginSuccess         string
	LoginFailure         string
	AccountLocked        string
	PasswordHashUpgraded string
}

type CredentialErrors struct {
	EngineNotReady     error
	AccountNotFound    error
	InvalidCredentials error
	AccountLocked      error
	EmailNotVerified   error
}

// CredentialDeps wires the credential verifier.
type CredentialDeps struct {
	UpgradeOnLogin bool

	Now    func() time.Time
	Logger *zap.Logger

	FindAccount func(ctx context.Context, email string) (CredentialAccount, error)

	// Lockout tracker.
	IsLocked      func(lockedUntil *time.Time, now time.Time) bool
	RecordFailure func(ctx context.Context, accountID string, now time.Time) (int, *time.Time, error)
	ResetFailures func(ctx context.Context, accountID string) error

	VerifyPassword     func(password, hash string) (bool, error)
	NeedsUpgrade       func(hash string) bool
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, accountID, hash string) error

	// TriggerVerification runs the verification gate for an unverified
	// account. Its error never changes the outcome.
	TriggerVerification func(ctx context.Context, account CredentialAccount) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics CredentialMetrics
	Events  CredentialEvents
	Errors  CredentialErrors
}

// RunVerifyCredentials classifies an (email, password) attempt. The email
// must already be normalized. The returned error is reserved for backend
// failures; every rejection is expressed through the outcome.
//
// Order: unknown email, then lock, then the verification gate, then the
// password comparison. Only a wrong password for a known, unlocked,
// verified account advances the failure counter.
func RunVerifyCredentials(ctx context.Context, email, password string, deps CredentialDeps) (CredentialResult, error) {
	normalizeCredentialDeps(&deps)

	if deps.FindAccount == nil || deps.VerifyPassword == nil || deps.RecordFailure == nil || deps.ResetFailures == nil {
		return CredentialResult{}, deps.Errors.EngineNotReady
	}

	invalid := func(accountID, reason string) CredentialResult {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, accountID, email, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return CredentialResult{Outcome: OutcomeInvalidCredentials}
	}

	if email == "" || password == "" {
		return invalid("", "missing_credentials"), nil
	}

	account, err := deps.FindAccount(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return invalid("", "unknown_email"), nil
		}
		return CredentialResult{}, err
	}
	if account.PasswordHash == "" {
		res := invalid(account.ID, "no_password")
		res.Account = &account
		return res, nil
	}

	now := deps.Now()
	if deps.IsLocked(account.LockedUntil, now) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, email, deps.Errors.AccountLocked, nil)
		return CredentialResult{Outcome: OutcomeAccountLocked, Account: &account, LockedUntil: account.LockedUntil}, nil
	}

	if !account.EmailVerified {
		if deps.TriggerVerification != nil {
			if err := deps.TriggerVerification(ctx, account); err != nil {
				deps.Logger.Warn("verification gate failed",
					zap.String("account_id", account.ID),
					zap.Error(err),
				)
			}
		}
		deps.MetricInc(deps.Metrics.LoginUnverified)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, email, deps.Errors.EmailNotVerified, nil)
		return CredentialResult{Outcome: OutcomeEmailNotVerified, Account: &account}, nil
	}

	ok, err := deps.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		deps.Logger.Error("stored password hash unreadable",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		ok = false
	}
	if !ok {
		attempts, lockedUntil, err := deps.RecordFailure(ctx, account.ID, now)
		if err != nil {
			deps.Logger.Error("record login failure",
				zap.String("account_id", account.ID),
				zap.Error(err),
			)
			res := invalid(account.ID, "wrong_password")
			res.Account = &account
			return res, nil
		}
		account.LockedUntil = lockedUntil
		if deps.IsLocked(lockedUntil, now) {
			deps.MetricInc(deps.Metrics.LockoutTriggered)
			deps.EmitAudit(ctx, deps.Events.AccountLocked, false, account.ID, email, deps.Errors.AccountLocked, func() map[string]string {
				return map[string]string{
					"attempts":     strconv.Itoa(attempts),
					"locked_until": lockedUntil.UTC().Format(time.RFC3339),
				}
			})
		}
		res := invalid(account.ID, "wrong_password")
		res.Account = &account
		return res, nil
	}

	if err := deps.ResetFailures(ctx, account.ID); err != nil {
		deps.Logger.Error("reset login failures",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
	account.LockedUntil = nil

	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, &account, password, deps)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.ID, email, nil, nil)
	return CredentialResult{Outcome: OutcomeSuccess, Account: &account}, nil
}

// upgradePasswordHash re-hashes with current parameters. Best-effort: the
// login already succeeded.
func upgradePasswordHash(ctx context.Context, account *CredentialAccount, password string, deps CredentialDeps) {
	if deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	if !deps.NeedsUpgrade(account.PasswordHash) {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Logger.Warn("password rehash failed", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	if err := deps.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		deps.Logger.Warn("password rehash not stored", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	account.PasswordHash = hash
	deps.MetricInc(deps.Metrics.PasswordHashUpgraded)
	deps.EmitAudit(ctx, deps.Events.PasswordHashUpgraded, true, account.ID, account.Email, nil, nil)
}

func normalizeCredentialDeps(deps *CredentialDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.IsLocked == nil {
		deps.IsLocked = func(lockedUntil *time.Time, now time.Time) bool {
			return lockedUntil != nil && lockedUntil.After(now)
		}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}
