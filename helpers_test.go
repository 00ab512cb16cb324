package blogauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type memAccountStore struct {
	mu         sync.Mutex
	accounts   map[string]*Account // by id
	byEmail    map[string]string
	identities map[string]*FederatedIdentity // provider|subject
	findErr    error
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{
		accounts:   make(map[string]*Account),
		byEmail:    make(map[string]string),
		identities: make(map[string]*FederatedIdentity),
	}
}

func copyAccount(a *Account) *Account {
	out := *a
	if a.EmailVerifiedAt != nil {
		v := *a.EmailVerifiedAt
		out.EmailVerifiedAt = &v
	}
	if a.LockedUntil != nil {
		v := *a.LockedUntil
		out.LockedUntil = &v
	}
	return &out
}

func (s *memAccountStore) FindAccountByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(s.accounts[id]), nil
}

func (s *memAccountStore) FindAccountByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *memAccountStore) CreateAccount(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(account)
}

func (s *memAccountStore) createLocked(account *Account) error {
	if _, ok := s.byEmail[account.Email]; ok {
		return ErrAccountExists
	}
	s.accounts[account.ID] = copyAccount(account)
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *memAccountStore) MarkEmailVerified(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return ErrAccountNotFound
	}
	s.accounts[id].EmailVerifiedAt = &at
	return nil
}

func (s *memAccountStore) UpdatePasswordHash(_ context.Context, accountID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (s *memAccountStore) IncrementFailures(_ context.Context, accountID string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, nil, ErrAccountNotFound
	}
	a.FailedLoginCount++
	if a.FailedLoginCount >= threshold {
		until := lockUntil
		a.LockedUntil = &until
	} else {
		a.LockedUntil = nil
	}
	var out *time.Time
	if a.LockedUntil != nil {
		v := *a.LockedUntil
		out = &v
	}
	return a.FailedLoginCount, out, nil
}

func (s *memAccountStore) ResetFailures(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.FailedLoginCount = 0
	a.LockedUntil = nil
	return nil
}

func (s *memAccountStore) FindFederatedIdentity(_ context.Context, provider, subject string) (*FederatedIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[provider+"|"+subject]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := *id
	return &out, nil
}

func (s *memAccountStore) LinkFederatedIdentity(_ context.Context, identity *FederatedIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[identity.AccountID]; !ok {
		return ErrAccountNotFound
	}
	if s.identityCountLocked(identity.AccountID) > 0 {
		return ErrFederatedAccountNotLinked
	}
	out := *identity
	s.identities[identity.Provider+"|"+identity.Subject] = &out
	return nil
}

func (s *memAccountStore) UpdateFederatedIdentity(_ context.Context, identity *FederatedIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identity.Provider + "|" + identity.Subject
	if _, ok := s.identities[key]; !ok {
		return ErrAccountNotFound
	}
	out := *identity
	s.identities[key] = &out
	return nil
}

func (s *memAccountStore) CreateAccountWithIdentity(_ context.Context, account *Account, identity *FederatedIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createLocked(account); err != nil {
		return err
	}
	out := *identity
	s.identities[identity.Provider+"|"+identity.Subject] = &out
	return nil
}

func (s *memAccountStore) identityCountLocked(accountID string) int {
	n := 0
	for _, id := range s.identities {
		if id.AccountID == accountID {
			n++
		}
	}
	return n
}

func (s *memAccountStore) account(t *testing.T, email string) *Account {
	t.Helper()
	a, err := s.FindAccountByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("account %s: %v", email, err)
	}
	return a
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]Token // identifier|hash
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]Token)}
}

func (s *memTokenStore) SaveToken(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Identifier+"|"+token.Hash] = token
	return nil
}

func (s *memTokenStore) ConsumeToken(_ context.Context, identifier, hash string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identifier + "|" + hash
	tok, ok := s.tokens[key]
	if !ok {
		return nil, ErrTokenNotFound
	}
	delete(s.tokens, key)
	return &tok, nil
}

func (s *memTokenStore) PurgeTokens(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, tok := range s.tokens {
		if tok.Identifier == identifier {
			delete(s.tokens, k)
		}
	}
	return nil
}

func (s *memTokenStore) count(identifier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tok := range s.tokens {
		if tok.Identifier == identifier {
			n++
		}
	}
	return n
}

type sentMail struct {
	Kind string
	Msg  EmailMessage
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, msg EmailMessage) error {
	return n.record("verify", msg)
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, msg EmailMessage) error {
	return n.record("reset", msg)
}

func (n *recordingNotifier) record(kind string, msg EmailMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{Kind: kind, Msg: msg})
	return n.err
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.Kind == kind {
			c++
		}
	}
	return c
}

// lastToken returns the token carried in the most recent link of kind.
func (n *recordingNotifier) lastToken(t *testing.T, kind string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind != kind {
			continue
		}
		u, err := url.Parse(n.sent[i].Msg.URL)
		if err != nil {
			t.Fatalf("parse link: %v", err)
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no %s email sent", kind)
	return ""
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testHarness struct {
	engine   *Engine
	accounts *memAccountStore
	tokens   *memTokenStore
	mail     *recordingNotifier
	clock    *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.App.BaseURL = "https://blog.test"
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.JWT.PublicKey = nil
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 3
	return cfg
}

func newTestHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return newTestHarnessWith(t, New().WithConfig(cfg))
}

func newTestHarnessWith(t *testing.T, b *Builder) *testHarness {
	t.Helper()

	h := &testHarness{
		accounts: newMemAccountStore(),
		tokens:   newMemTokenStore(),
		mail:     &recordingNotifier{},
		clock:    &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	engine, err := b.
		WithAccountStore(h.accounts).
		WithTokenStore(h.tokens).
		WithNotifier(h.mail).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *testHarness) seedAccount(t *testing.T, email, pw string, verified bool) *Account {
	t.Helper()

	hash := ""
	if pw != "" {
		var err error
		hash, err = h.engine.hashPassword(pw)
		if err != nil {
			t.Fatalf("hash failed: %v", err)
		}
	}
	now := h.clock.Now()
	acc := &Account{
		ID:           "acc-" + email,
		Email:        email,
		Name:         "Test " + email,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if verified {
		acc.EmailVerifiedAt = &now
	}
	if err := h.accounts.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acc
}

func (h *testHarness) seedVerified(t *testing.T, email, pw string) *Account {
	t.Helper()
	return h.seedAccount(t, email, pw, true)
}

var errStoreDown = errors.New("store down")
