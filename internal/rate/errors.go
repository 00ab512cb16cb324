package rate

import "errors"

var (
	// ErrRedisUnavailable wraps transport failures of the Redis limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidKey is returned for an empty limiter key.
	ErrInvalidKey = errors.New("rate limit key required")
	// ErrInvalidLimit is returned for non-positive limits or windows.
	ErrInvalidLimit = errors.New("rate limit and window must be positive")
)
