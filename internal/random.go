package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	tokenSecretSize = 32
	stateSecretSize = 24
)

// NewTokenValue returns 32 random bytes hex-encoded. The value travels only in
// emailed links; stores keep HashTokenValue of it.
func NewTokenValue() (string, error) {
	var secret [tokenSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(secret[:]), nil
}

// HashTokenValue is the lookup key for a token value.
func HashTokenValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ValidTokenValue reports whether value has the shape NewTokenValue produces.
// Malformed values can skip the store round-trip.
func ValidTokenValue(value string) bool {
	if len(value) != hex.EncodedLen(tokenSecretSize) {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

// NewStateValue returns an unguessable OAuth state parameter.
func NewStateValue() (string, error) {
	var raw [stateSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeStateValue validates a state parameter produced by NewStateValue.
func DecodeStateValue(state string) error {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return err
	}
	if len(raw) != stateSecretSize {
		return errors.New("invalid state size")
	}
	return nil
}
