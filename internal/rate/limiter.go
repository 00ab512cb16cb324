package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared by every process that talks to the
// same Redis. Keys are namespaced with prefix.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis creates a [Redis] limiter. An empty prefix defaults to "rl".
func NewRedis(redisClient redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "rl"
	}
	return &Redis{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Allow counts one hit against key and reports whether the hit fits within
// limit for the current window.
func (l *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if err := checkArgs(key, limit, window); err != nil {
		return false, err
	}

	count, err := l.incrementWithTTL(ctx, l.prefix+":"+strings.ToLower(key), window)
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

// Reset clears the window for key.
func (l *Redis) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.prefix+":"+strings.ToLower(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// incrWindowLua counts a hit and opens the window on the first one. A counter
// left without a TTL is given one so it cannot block the key forever.
var incrWindowLua = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) == -1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func (l *Redis) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrWindowLua.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func checkArgs(key string, limit int, window time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if limit <= 0 || window <= 0 {
		return ErrInvalidLimit
	}
	return nil
}
