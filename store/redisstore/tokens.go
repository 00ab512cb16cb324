package redisstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/redis/go-redis/v9"
)

const tokenRecordVersionV1 = 1

// DefaultRetention keeps a record this long past its expiry so that a late
// click is reported as expired rather than unknown.
const DefaultRetention = 7 * 24 * time.Hour

// ErrRedisUnavailable wraps transport and script failures.
var ErrRedisUnavailable = errors.New("token redis unavailable")

// consumeTokenLua deletes a record and its index entry in one step.
// KEYS[1] = record key
// KEYS[2] = index key
// ARGV[1] = hash
var consumeTokenLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return data
`)

// purgeTokensLua deletes every record listed in an index, then the index.
// KEYS[1] = index key
// ARGV[1] = record key prefix
var purgeTokensLua = redis.NewScript(`
local hashes = redis.call('SMEMBERS', KEYS[1])
for _, h in ipairs(hashes) do
  redis.call('DEL', ARGV[1] .. h)
end
redis.call('DEL', KEYS[1])
return #hashes
`)

// TokenStore implements blogauth.TokenStore on Redis. Records are keyed by
// identifier and hash; a per-identifier set indexes them for purging. Both
// keys share a hash tag so the scripts work on Redis Cluster.
type TokenStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// Option customizes a TokenStore.
type Option func(*TokenStore)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *TokenStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithClock overrides time.Now when computing key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) {
		if now != nil {
			s.now = now
		}
	}
}

var _ blogauth.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a TokenStore. prefix defaults to "blogauth".
func NewTokenStore(client redis.UniversalClient, prefix string, opts ...Option) *TokenStore {
	if prefix == "" {
		prefix = "blogauth"
	}
	s := &TokenStore{
		redis:     client,
		prefix:    prefix,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenStore) recordPrefix(identifier string) string {
	return s.prefix + ":vt:{" + identifier + "}:"
}

func (s *TokenStore) recordKey(identifier, hash string) string {
	return s.recordPrefix(identifier) + hash
}

func (s *TokenStore) indexKey(identifier string) string {
	return s.prefix + ":vti:{" + identifier + "}"
}

// SaveToken implements blogauth.TokenStore.
func (s *TokenStore) SaveToken(ctx context.Context, token blogauth.Token) error {
	encoded, err := encodeTokenRecord(token)
	if err != nil {
		return err
	}

	ttl := token.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		ttl = time.Second
	}

	idx := s.indexKey(token.Identifier)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(token.Identifier, token.Hash), encoded, ttl)
		pipe.SAdd(ctx, idx, token.Hash)
		pipe.Expire(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeToken implements blogauth.TokenStore.
func (s *TokenStore) ConsumeToken(ctx context.Context, identifier, hash string) (*blogauth.Token, error) {
	result, err := consumeTokenLua.Run(ctx, s.redis,
		[]string{s.recordKey(identifier, hash), s.indexKey(identifier)},
		hash,
	).Result()
	if err != nil {
		if err.Error() == "not_found" {
			return nil, blogauth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrRedisUnavailable)
	}
	token, err := decodeTokenRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	token.Identifier = identifier
	token.Hash = hash
	return token, nil
}

// PurgeTokens implements blogauth.TokenStore.
func (s *TokenStore) PurgeTokens(ctx context.Context, identifier string) error {
	err := purgeTokensLua.Run(ctx, s.redis,
		[]string{s.indexKey(identifier)},
		s.recordPrefix(identifier),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping checks the connection.
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Record layout: version(1) expiresAt(8, unix nanos) createdAt(8, unix nanos).
func encodeTokenRecord(token blogauth.Token) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, token.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, token.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*blogauth.Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	var expires, created int64
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if _, err := reader.ReadByte(); err != io.EOF {
		return nil, errors.New("trailing bytes in token record")
	}

	return &blogauth.Token{
		ExpiresAt: time.Unix(0, expires).UTC(),
		CreatedAt: time.Unix(0, created).UTC(),
	}, nil
}
