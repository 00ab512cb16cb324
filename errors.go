package blogauth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
	// accounts without a password. Callers cannot tell these apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is matched by *LockedError.
	ErrAccountLocked = errors.New("account locked, try later")
	// ErrEmailNotVerified is an exported constant or variable used by the authentication engine.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountNotFound is returned by AccountStore lookups that match nothing.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when a verified account already owns the email.
	ErrAccountExists = errors.New("email already registered")
	// ErrAccountPendingVerification is returned when an unverified account already owns the email.
	ErrAccountPendingVerification = errors.New("email registered and pending verification")
	// ErrConflict marks data-integrity failures reported by a store.
	ErrConflict = errors.New("conflict")

	// ErrTokenNotFound is returned by TokenStore.ConsumeToken when no record matches.
	ErrTokenNotFound = errors.New("token not found")
	// ErrVerificationInvalid is an exported constant or variable used by the authentication engine.
	ErrVerificationInvalid = errors.New("invalid or expired token")
	// ErrVerificationExpired is reported once; the expired token is deleted.
	ErrVerificationExpired = errors.New("verification link has expired")
	// ErrPasswordResetInvalid covers unknown, reused and expired reset tokens alike.
	ErrPasswordResetInvalid = errors.New("invalid or expired token")

	// ErrFederatedProfileInvalid is an exported constant or variable used by the authentication engine.
	ErrFederatedProfileInvalid = errors.New("federated profile incomplete")
	// ErrFederatedEmailUnverified is returned when the identity provider does not
	// vouch for the profile email and linking requires it.
	ErrFederatedEmailUnverified = errors.New("federated email not verified by provider")
	// ErrFederatedAccountNotLinked is returned when the email belongs to an account
	// that already has a different federated identity.
	ErrFederatedAccountNotLinked = errors.New("email already in use with another sign-in method")

	// ErrSessionInvalid wraps every session parse failure.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionCreationFailed is an exported constant or variable used by the authentication engine.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrRateLimited is returned by RateLimiter implementations that prefer an error over a false grant.
	ErrRateLimited = errors.New("rate limited")
	// ErrEngineNotReady is returned by methods on a nil or partially wired Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError carries field-level input problems. It is the only error
// kind whose detail is meant for end users.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// LockedError wraps ErrAccountLocked with the instant the lock elapses.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s (until %s)", ErrAccountLocked.Error(), e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

func isNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}
