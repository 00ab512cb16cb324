package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrThrottled           = errors.New("request throttled")
	ErrThrottleUnavailable = errors.New("throttle backend unavailable")
)

// Counter is the fixed-window primitive a throttle counts against.
type Counter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type ThrottleConfig struct {
	Scope                    string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Window                   time.Duration
}

// Throttle limits one operation per identifier and per client IP.
type Throttle struct {
	counter Counter
	config  ThrottleConfig
}

func NewThrottle(counter Counter, cfg ThrottleConfig) *Throttle {
	return &Throttle{
		counter: counter,
		config:  cfg,
	}
}

// Enforce returns ErrThrottled when either budget is exhausted. A nil
// receiver or a disabled throttle always allows.
func (t *Throttle) Enforce(ctx context.Context, identifier, ip string) error {
	if t == nil || t.counter == nil || t.config.MaxAttempts <= 0 || t.config.Window <= 0 {
		return nil
	}

	if t.config.EnableIdentifierThrottle && identifier != "" {
		if err := t.enforceKey(ctx, t.config.Scope+":id:"+strings.ToLower(identifier)); err != nil {
			return err
		}
	}

	if t.config.EnableIPThrottle && ip != "" {
		if err := t.enforceKey(ctx, t.config.Scope+":ip:"+ip); err != nil {
			return err
		}
	}

	return nil
}

func (t *Throttle) enforceKey(ctx context.Context, key string) error {
	ok, err := t.counter.Allow(ctx, key, t.config.MaxAttempts, t.config.Window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
	}
	if !ok {
		return ErrThrottled
	}
	return nil
}
