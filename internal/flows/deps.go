package flows

import (
	"context"
	"time"
)

// TokenRecord is the flow-local view of a stored single-use token.
type TokenRecord struct {
	Identifier string
	Hash       string
	ExpiresAt  time.Time
}

// TokenDeps is the token lifecycle shared by verification and reset flows.
type TokenDeps struct {
	TTL time.Duration

	// NewToken returns the emailed value and the hash that is stored.
	NewToken   func() (value string, hash string, err error)
	HashToken  func(string) string
	ValidToken func(string) bool

	SaveToken    func(ctx context.Context, record TokenRecord) error
	ConsumeToken func(ctx context.Context, identifier, hash string) (TokenRecord, error)
	PurgeTokens  func(ctx context.Context, identifier string) error

	// NotFound is the store's sentinel for a missing (identifier, hash) pair.
	NotFound error
}

// EmailMessage is the flow-local outbound email payload.
type EmailMessage struct {
	To        string
	Name      string
	URL       string
	ExpiresAt time.Time
}

// AuditFunc emits one audit event.
type AuditFunc func(ctx context.Context, eventType string, success bool, accountID, email string, err error, metadata func() map[string]string)

func (d *TokenDeps) ready() bool {
	return d.NewToken != nil && d.HashToken != nil && d.ValidToken != nil &&
		d.SaveToken != nil && d.ConsumeToken != nil && d.PurgeTokens != nil
}

// issue purges every token for identifier and stores a fresh one. The
// plaintext value is returned for the emailed link.
func (d *TokenDeps) issue(ctx context.Context, identifier string, now time.Time) (string, TokenRecord, error) {
	if err := d.PurgeTokens(ctx, identifier); err != nil {
		return "", TokenRecord{}, err
	}
	value, hash, err := d.NewToken()
	if err != nil {
		return "", TokenRecord{}, err
	}
	record := TokenRecord{
		Identifier: identifier,
		Hash:       hash,
		ExpiresAt:  now.Add(d.TTL),
	}
	if err := d.SaveToken(ctx, record); err != nil {
		return "", TokenRecord{}, err
	}
	return value, record, nil
}
