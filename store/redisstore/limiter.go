package redisstore

import (
	"context"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window blogauth.RateLimiter shared by every
// process using the same Redis, so the verification resend cap holds across
// replicas.
type RateLimiter struct {
	limiter *rate.Redis
}

var _ blogauth.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter. prefix defaults to "blogauth:rl".
func NewRateLimiter(client redis.UniversalClient, prefix string) *RateLimiter {
	if prefix == "" {
		prefix = "blogauth:rl"
	}
	return &RateLimiter{limiter: rate.NewRedis(client, prefix)}
}

// Allow implements blogauth.RateLimiter.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.limiter.Allow(ctx, key, limit, window)
}

// Reset clears the window for key.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.limiter.Reset(ctx, key)
}
