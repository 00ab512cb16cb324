package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LockoutConfig holds configuration for the failed-login lockout tracker.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

var (
	// ErrLockoutUnavailable indicates the failure store could not be updated.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// FailureStore persists the per-account failure counter. IncrementFailures
// must add one to the stored count atomically and, in the same write, set
// the lock expiry to lockUntil when the new count reaches threshold or clear
// it otherwise.
type FailureStore interface {
	IncrementFailures(ctx context.Context, accountID string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	ResetFailures(ctx context.Context, accountID string) error
}

// LockoutState is the tracker's view of one account.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LockoutLimiter moves accounts between OPEN and LOCKED. A lock elapses on
// its own; the counter only returns to zero through Reset, so the first
// failure after a lock expires locks again.
type LockoutLimiter struct {
	store  FailureStore
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(store FailureStore, cfg LockoutConfig) *LockoutLimiter {
	return &LockoutLimiter{store: store, config: cfg}
}

// Locked reports whether lockedUntil is still in the future at now.
func (l *LockoutLimiter) Locked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// RecordFailure counts one failed password comparison.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, accountID string, now time.Time) (LockoutState, error) {
	if accountID == "" {
		return LockoutState{}, nil
	}

	count, until, err := l.store.IncrementFailures(ctx, accountID, l.config.Threshold, now.Add(l.config.Duration))
	if err != nil {
		return LockoutState{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return LockoutState{FailedAttempts: count, LockedUntil: until}, nil
}

// Reset clears the failure counter and any lock, e.g. after a successful login.
func (l *LockoutLimiter) Reset(ctx context.Context, accountID string) error {
	if accountID == "" {
		return nil
	}

	if err := l.store.ResetFailures(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Threshold returns the configured failure budget.
func (l *LockoutLimiter) Threshold() int {
	return l.config.Threshold
}
