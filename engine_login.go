package blogauth

import (
	"context"
	"time"

	internalflows "github.com/OmorFaruk63/blogauth/internal/flows"
)

// VerifyCredentials classifies an email and password pair without issuing a
// session. The error return is reserved for backend failures; every
// rejection is reported through the outcome. For an unverified account the
// verification gate runs before the outcome is returned.
func (e *Engine) VerifyCredentials(ctx context.Context, email, password string) (LoginOutcome, *Account, error) {
	if e == nil || e.accounts == nil || e.hasher == nil || e.lockout == nil {
		return "", nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	var found *Account
	deps := e.credentialFlowDeps(&found)
	res, err := internalflows.RunVerifyCredentials(ctx, email, password, deps)
	if err != nil {
		return "", nil, err
	}

	if found != nil && res.Account != nil {
		found.PasswordHash = res.Account.PasswordHash
		found.LockedUntil = res.Account.LockedUntil
		if res.Outcome == internalflows.OutcomeSuccess {
			found.FailedLoginCount = 0
		}
	}

	switch res.Outcome {
	case internalflows.OutcomeSuccess:
		return LoginSuccess, found, nil
	case internalflows.OutcomeAccountLocked:
		return LoginAccountLocked, found, nil
	case internalflows.OutcomeEmailNotVerified:
		return LoginEmailNotVerified, found, nil
	default:
		return LoginInvalidCredentials, nil, nil
	}
}

// Login runs [Engine.VerifyCredentials] and issues a session on success.
//
// Rejections are ErrInvalidCredentials, ErrEmailNotVerified, or a
// *LockedError that matches ErrAccountLocked under errors.Is.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := time.Now()
	defer func() {
		e.metricObserve(MetricLoginLatency, time.Since(start))
	}()

	outcome, account, err := e.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case LoginSuccess:
	case LoginAccountLocked:
		if account != nil && account.LockedUntil != nil {
			return nil, &LockedError{Until: *account.LockedUntil}
		}
		return nil, ErrAccountLocked
	default:
		return nil, outcome.Err()
	}

	token, expires, err := e.IssueSession(ctx, account)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Account:      account,
		SessionToken: token,
		ExpiresAt:    expires,
	}, nil
}

func (e *Engine) credentialFlowDeps(found **Account) internalflows.CredentialDeps {
	return internalflows.CredentialDeps{
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		Now:            e.now,
		Logger:         e.log(),
		FindAccount: func(ctx context.Context, email string) (internalflows.CredentialAccount, error) {
			acc, err := e.accounts.FindAccountByEmail(ctx, email)
			if err != nil {
				return internalflows.CredentialAccount{}, err
			}
			*found = acc
			return internalflows.CredentialAccount{
				ID:            acc.ID,
				Email:         acc.Email,
				Name:          acc.Name,
				PasswordHash:  acc.PasswordHash,
				EmailVerified: acc.EmailVerified(),
				LockedUntil:   acc.LockedUntil,
			}, nil
		},
		IsLocked: e.lockout.Locked,
		RecordFailure: func(ctx context.Context, accountID string, now time.Time) (int, *time.Time, error) {
			state, err := e.lockout.RecordFailure(ctx, accountID, now)
			if err != nil {
				return 0, nil, err
			}
			return state.FailedAttempts, state.LockedUntil, nil
		},
		ResetFailures: e.lockout.Reset,
		VerifyPassword: func(pw, hash string) (bool, error) {
			return e.hasher.Verify(pw, hash)
		},
		NeedsUpgrade: func(hash string) bool {
			upgrade, err := e.hasher.NeedsUpgrade(hash)
			return err == nil && upgrade
		},
		HashPassword:       e.hashPassword,
		UpdatePasswordHash: e.accounts.UpdatePasswordHash,
		TriggerVerification: func(ctx context.Context, acc internalflows.CredentialAccount) error {
			_, err := internalflows.RunIssueVerification(ctx, internalflows.VerificationTarget{
				AccountID: acc.ID,
				Email:     acc.Email,
				Name:      acc.Name,
			}, true, e.verificationFlowDeps())
			return err
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Metrics: internalflows.CredentialMetrics{
			LoginSuccess:         int(MetricLoginSuccess),
			LoginFailure:         int(MetricLoginFailure),
			LoginLocked:          int(MetricLoginLocked),
			LoginUnverified:      int(MetricLoginUnverified),
			LockoutTriggered:     int(MetricLockoutTriggered),
			PasswordHashUpgraded: int(MetricPasswordHashUpgraded),
		},
		Events: internalflows.CredentialEvents{
			LoginSuccess:         auditEventLoginSuccess,
			LoginFailure:         auditEventLoginFailure,
			AccountLocked:        auditEventAccountLocked,
			PasswordHashUpgraded: auditEventPasswordHashUpgraded,
		},
		Errors: internalflows.CredentialErrors{
			EngineNotReady:     ErrEngineNotReady,
			AccountNotFound:    ErrAccountNotFound,
			InvalidCredentials: ErrInvalidCredentials,
			AccountLocked:      ErrAccountLocked,
			EmailNotVerified:   ErrEmailNotVerified,
		},
	}
}
