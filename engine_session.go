package blogauth

import (
	"context"
	"fmt"
	"time"
)

// SessionClaims is what a verified session token asserts.
type SessionClaims struct {
	AccountID string
	Role      Role
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the session carries one of roles.
func (c *SessionClaims) HasRole(roles ...Role) bool {
	if c == nil {
		return false
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// IssueSession signs a session token carrying the account's ID and role.
func (e *Engine) IssueSession(ctx context.Context, account *Account) (string, time.Time, error) {
	if e == nil || e.jwtManager == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	if account == nil || account.ID == "" {
		return "", time.Time{}, ErrSessionCreationFailed
	}

	token, expires, err := e.jwtManager.CreateSession(account.ID, string(account.Role), account.Email, account.Name)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionIssued, true, account.ID, account.Email, nil, func() map[string]string {
		return map[string]string{"role": string(account.Role)}
	})
	return token, expires, nil
}

// ParseSession verifies a session token. Every failure is reported as
// ErrSessionInvalid.
func (e *Engine) ParseSession(token string) (*SessionClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrSessionInvalid
	}

	claims, err := e.jwtManager.ParseSession(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return nil, ErrSessionInvalid
	}

	out := &SessionClaims{
		AccountID: claims.Subject,
		Role:      role,
		Email:     claims.Email,
		Name:      claims.Name,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
