package blogauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/OmorFaruk63/blogauth/internal/audit"
	internalmetrics "github.com/OmorFaruk63/blogauth/internal/metrics"
	"go.uber.org/zap"
)

// Role is the authorization level carried in session claims.
type Role string

const (
	// RoleUser is the default role for new accounts.
	RoleUser Role = "USER"
	// RoleAuthor may write posts.
	RoleAuthor Role = "AUTHOR"
	// RoleAdmin may administer the site.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// Account is a registered user. Email is stored lower-cased and trimmed.
type Account struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Role             Role
	EmailVerifiedAt  *time.Time
	FailedLoginCount int
	LockedUntil      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmailVerified reports whether the owner proved control of Email.
func (a *Account) EmailVerified() bool {
	return a != nil && a.EmailVerifiedAt != nil
}

// HasPassword is false for accounts created through federated sign-in.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// FederatedIdentity links an Account to an external identity provider.
type FederatedIdentity struct {
	ID           string
	AccountID    string
	Provider     string
	Subject      string
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}

// Token is a stored verification or password-reset token. Hash is the hex
// SHA-256 of the value sent by email; the value itself is never stored.
type Token struct {
	Identifier string
	Hash       string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *Token) Expired(now time.Time) bool {
	return t == nil || !t.ExpiresAt.After(now)
}

// LoginOutcome is the result of credential verification.
type LoginOutcome string

const (
	LoginSuccess            LoginOutcome = "success"
	LoginInvalidCredentials LoginOutcome = "invalid_credentials"
	LoginAccountLocked      LoginOutcome = "account_locked"
	LoginEmailNotVerified   LoginOutcome = "email_not_verified"
)

// Err maps a rejection outcome to its sentinel error.
func (o LoginOutcome) Err() error {
	switch o {
	case LoginSuccess:
		return nil
	case LoginAccountLocked:
		return ErrAccountLocked
	case LoginEmailNotVerified:
		return ErrEmailNotVerified
	default:
		return ErrInvalidCredentials
	}
}

// LoginResult is returned by successful sign-ins.
type LoginResult struct {
	Account      *Account
	SessionToken string
	ExpiresAt    time.Time
	// Linked is set when a federated sign-in attached a new identity to an
	// existing account.
	Linked bool
	// Created is set when a federated sign-in created the account.
	Created bool
}

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	Account  *Account
	Redirect string
}

// FederatedProfile is what an identity provider asserted about a user.
type FederatedProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	AccessToken   string
	RefreshToken  string
	IDToken       string
	TokenType     string
	ExpiresAt     *time.Time
}

// AccountStore persists accounts and federated identities.
type AccountStore interface {
	// FindAccountByEmail returns ErrAccountNotFound when no account matches.
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	// CreateAccount returns ErrAccountExists if the email is taken.
	CreateAccount(ctx context.Context, account *Account) error
	// MarkEmailVerified returns ErrAccountNotFound when no account owns email.
	MarkEmailVerified(ctx context.Context, email string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error

	// IncrementFailures atomically adds one to the failure counter. When the
	// new count reaches threshold the lock expiry is set to lockUntil,
	// otherwise it is cleared. It returns the new count and lock expiry.
	IncrementFailures(ctx context.Context, accountID string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	// ResetFailures sets the counter to zero and clears the lock.
	ResetFailures(ctx context.Context, accountID string) error

	// FindFederatedIdentity returns ErrAccountNotFound when no identity matches.
	FindFederatedIdentity(ctx context.Context, provider, subject string) (*FederatedIdentity, error)
	// LinkFederatedIdentity stores identity only if its account has no
	// federated identity yet; otherwise it returns ErrFederatedAccountNotLinked.
	LinkFederatedIdentity(ctx context.Context, identity *FederatedIdentity) error
	UpdateFederatedIdentity(ctx context.Context, identity *FederatedIdentity) error
	// CreateAccountWithIdentity stores both records in one transaction.
	CreateAccountWithIdentity(ctx context.Context, account *Account, identity *FederatedIdentity) error
}

// TokenStore persists emailed tokens keyed by (identifier, hash).
type TokenStore interface {
	SaveToken(ctx context.Context, token Token) error
	// ConsumeToken removes the matching record and returns it, expired or
	// not. It returns ErrTokenNotFound when nothing matches. Two concurrent
	// calls for the same token must not both succeed.
	ConsumeToken(ctx context.Context, identifier, hash string) (*Token, error)
	// PurgeTokens removes every token for identifier.
	PurgeTokens(ctx context.Context, identifier string) error
}

// RateLimiter is a fixed-window counter keyed by arbitrary strings.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Notifier delivers account email.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, msg EmailMessage) error
	SendPasswordResetEmail(ctx context.Context, msg EmailMessage) error
}

// EmailMessage carries what a template needs to render an account email.
type EmailMessage struct {
	To        string
	Name      string
	URL       string
	ExpiresAt time.Time
}

// AuditEvent is the canonical audit event emitted by the Engine.
type AuditEvent = internalaudit.Event

// AuditSink consumes audit events.
type AuditSink = internalaudit.Sink

// NoOpSink drops all audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapAuditSink logs audit events with zap.
type ZapAuditSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapAuditSink(logger *zap.Logger) *ZapAuditSink {
	return internalaudit.NewZapSink(logger)
}

// MetricID identifies an Engine counter.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess                = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure                = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginLocked                 = MetricID(internalmetrics.MetricLoginLocked)
	MetricLoginUnverified             = MetricID(internalmetrics.MetricLoginUnverified)
	MetricLockoutTriggered            = MetricID(internalmetrics.MetricLockoutTriggered)
	MetricRateLimitHit                = MetricID(internalmetrics.MetricRateLimitHit)
	MetricSessionCreated              = MetricID(internalmetrics.MetricSessionCreated)
	MetricAccountCreationSuccess      = MetricID(internalmetrics.MetricAccountCreationSuccess)
	MetricAccountCreationDuplicate    = MetricID(internalmetrics.MetricAccountCreationDuplicate)
	MetricEmailVerificationRequest    = MetricID(internalmetrics.MetricEmailVerificationRequest)
	MetricEmailVerificationSuccess    = MetricID(internalmetrics.MetricEmailVerificationSuccess)
	MetricEmailVerificationFailure    = MetricID(internalmetrics.MetricEmailVerificationFailure)
	MetricEmailVerificationExpired    = MetricID(internalmetrics.MetricEmailVerificationExpired)
	MetricPasswordResetRequest        = MetricID(internalmetrics.MetricPasswordResetRequest)
	MetricPasswordResetConfirmSuccess = MetricID(internalmetrics.MetricPasswordResetConfirmSuccess)
	MetricPasswordResetConfirmFailure = MetricID(internalmetrics.MetricPasswordResetConfirmFailure)
	MetricEmailDeliveryFailure        = MetricID(internalmetrics.MetricEmailDeliveryFailure)
	MetricFederatedSignIn             = MetricID(internalmetrics.MetricFederatedSignIn)
	MetricFederatedLinked             = MetricID(internalmetrics.MetricFederatedLinked)
	MetricFederatedAccountCreated     = MetricID(internalmetrics.MetricFederatedAccountCreated)
	MetricFederatedRejected           = MetricID(internalmetrics.MetricFederatedRejected)
	MetricPasswordHashUpgraded        = MetricID(internalmetrics.MetricPasswordHashUpgraded)
	MetricLoginLatency                = MetricID(internalmetrics.MetricLoginLatency)
)

// Metrics is the Engine's counter set.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a counter set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
