package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	schemeArgon2id = "argon2id"

	minMemoryKiB  = 8 * 1024
	minSaltLength = 16
	minKeyLength  = 16
)

var (
	// ErrEmptyPassword is returned when hashing an empty string.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrUnknownScheme is returned for stored hashes in no supported format.
	ErrUnknownScheme = errors.New("unsupported password hash scheme")
	// ErrMalformedHash is returned for an argon2id string that cannot be decoded.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// PHC segments are unpadded standard base64.
var b64 = base64.RawStdEncoding

// Config holds argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKiB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKiB)
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher issues argon2id hashes and still verifies bcrypt hashes carried
// over from accounts created before argon2id was adopted.
type Hasher struct {
	cfg Config
}

// NewHasher returns a Hasher producing argon2id hashes with cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash always produces argon2id with a fresh salt. Length policy belongs to
// the caller; only the empty password is refused.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return argonHash{
		memory:  h.cfg.Memory,
		time:    h.cfg.Time,
		threads: h.cfg.Parallelism,
		salt:    salt,
		key:     argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength),
	}.encode(), nil
}

// Verify dispatches on the stored hash's scheme.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case isArgon2id(encodedHash):
		stored, err := decodeArgon(encodedHash)
		if err != nil {
			return false, err
		}
		got := argon2.IDKey([]byte(password), stored.salt, stored.time, stored.memory, stored.threads, uint32(len(stored.key)))
		return subtle.ConstantTimeCompare(got, stored.key) == 1, nil
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	default:
		return false, ErrUnknownScheme
	}
}

// NeedsUpgrade is true for every bcrypt hash and for argon2id hashes made
// with weaker parameters than the current configuration.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	switch {
	case isBcrypt(encodedHash):
		return true, nil
	case isArgon2id(encodedHash):
		stored, err := decodeArgon(encodedHash)
		if err != nil {
			return false, err
		}
		return stored.memory < h.cfg.Memory ||
			stored.time < h.cfg.Time ||
			stored.threads < h.cfg.Parallelism ||
			uint32(len(stored.salt)) < h.cfg.SaltLength ||
			uint32(len(stored.key)) != h.cfg.KeyLength, nil
	default:
		return false, ErrUnknownScheme
	}
}

// argonHash is one decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type argonHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (a argonHash) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", a.memory, a.time, a.threads)
}

func (a argonHash) encode() string {
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s",
		schemeArgon2id, argon2.Version, a.params(), b64.EncodeToString(a.salt), b64.EncodeToString(a.key))
}

func decodeArgon(encoded string) (argonHash, error) {
	var a argonHash

	fields := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(fields) != 5 || fields[0] != schemeArgon2id {
		return a, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[1], "v=%d", &version); err != nil || version != argon2.Version {
		return a, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[1])
	}

	// Re-encoding must reproduce the segment, which rejects reordered,
	// missing and extra parameters.
	if _, err := fmt.Sscanf(fields[2], "m=%d,t=%d,p=%d", &a.memory, &a.time, &a.threads); err != nil || a.params() != fields[2] {
		return a, fmt.Errorf("%w: bad parameters %q", ErrMalformedHash, fields[2])
	}
	if a.memory < minMemoryKiB || a.time < 1 || a.threads < 1 {
		return a, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	var err error
	if a.salt, err = b64.DecodeString(fields[3]); err != nil || len(a.salt) < minSaltLength {
		return a, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if a.key, err = b64.DecodeString(fields[4]); err != nil || len(a.key) == 0 {
		return a, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return a, nil
}

func isArgon2id(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$"+schemeArgon2id+"$")
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
