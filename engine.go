package blogauth

import (
	"context"
	"net/url"
	"strings"
	"time"

	internalaudit "github.com/OmorFaruk63/blogauth/internal/audit"
	"github.com/OmorFaruk63/blogauth/internal/limiters"
	"github.com/OmorFaruk63/blogauth/jwt"
	"github.com/OmorFaruk63/blogauth/password"
	"go.uber.org/zap"
)

// Engine is the account-security core: credential checks, lockout, the
// verification gate, token lifecycles, federated linking and sessions.
//
// Engine instances are configured through [Builder] and then treated as
// immutable. All methods are safe for concurrent use.
type Engine struct {
	config Config

	accounts AccountStore
	tokens   TokenStore
	limiter  RateLimiter
	notifier Notifier

	lockout          *limiters.LockoutLimiter
	resetThrottle    *limiters.Throttle
	registerThrottle *limiters.Throttle

	hasher     *password.Hasher
	jwtManager *jwt.Manager

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *zap.Logger
	clock   func() time.Time
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// AuditDropped returns the number of audit events discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionTTL is the lifetime of tokens returned by [Engine.IssueSession].
func (e *Engine) SessionTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.JWT.SessionTTL
}

// Ping checks that the stores answer. Stores that implement
// Ping(context.Context) error are probed; others are assumed healthy.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.accounts == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	type pinger interface {
		Ping(context.Context) error
	}
	for _, s := range []any{e.accounts, e.tokens, e.limiter} {
		if p, ok := s.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

func (e *Engine) hashPassword(pw string) (string, error) {
	if e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(pw)
}

func (e *Engine) buildLink(path, email, token string) string {
	base := strings.TrimRight(e.config.App.BaseURL, "/")
	return base + path + "?token=" + token + "&email=" + url.QueryEscape(email)
}

// normalizeEmail is applied to every email before lookup or insert.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
