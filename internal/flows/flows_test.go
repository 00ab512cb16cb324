package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errNotFound      = errors.New("not found")
	errTokenNotFound = errors.New("token not found")
	errInvalid       = errors.New("invalid credentials")
	errLocked        = errors.New("locked")
	errUnverified    = errors.New("unverified")
	errVerifyInvalid = errors.New("verification invalid")
	errVerifyExpired = errors.New("verification expired")
	errResetInvalid  = errors.New("reset invalid")
	errRateLimited   = errors.New("rate limited")
)

type tokenBox struct {
	mu      sync.Mutex
	records map[string]TokenRecord
	seq     int
}

func newTokenBox() *tokenBox {
	return &tokenBox{records: map[string]TokenRecord{}}
}

func (b *tokenBox) deps(ttl time.Duration) TokenDeps {
	return TokenDeps{
		TTL: ttl,
		NewToken: func() (string, string, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.seq++
			v := tokenValue(b.seq)
			return v, "h:" + v, nil
		},
		HashToken:  func(v string) string { return "h:" + v },
		ValidToken: func(v string) bool { return len(v) == 64 },
		SaveToken: func(_ context.Context, r TokenRecord) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.records[r.Identifier+"|"+r.Hash] = r
			return nil
		},
		ConsumeToken: func(_ context.Context, id, hash string) (TokenRecord, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			r, ok := b.records[id+"|"+hash]
			if !ok {
				return TokenRecord{}, errTokenNotFound
			}
			delete(b.records, id+"|"+hash)
			return r, nil
		},
		PurgeTokens: func(_ context.Context, id string) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			for k, r := range b.records {
				if r.Identifier == id {
					delete(b.records, k)
				}
			}
			return nil
		},
		NotFound: errTokenNotFound,
	}
}

func (b *tokenBox) count(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.records {
		if r.Identifier == id {
			n++
		}
	}
	return n
}

func tokenValue(n int) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i := range out {
		out[i] = '0'
	}
	for i := 63; n > 0 && i >= 0; i-- {
		out[i] = hexdigits[n%16]
		n /= 16
	}
	return string(out)
}

type outbox struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (o *outbox) send(_ context.Context, msg EmailMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return o.err
}

func (o *outbox) last() EmailMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[len(o.sent)-1]
}

func credentialDepsFor(acc *CredentialAccount, now time.Time) (CredentialDeps, *int) {
	failures := 0
	return CredentialDeps{
		Now: func() time.Time { return now },
		FindAccount: func(_ context.Context, email string) (CredentialAccount, error) {
			if acc == nil || acc.Email != email {
				return CredentialAccount{}, errNotFound
			}
			return *acc, nil
		},
		RecordFailure: func(_ context.Context, _ string, now time.Time) (int, *time.Time, error) {
			failures++
			if failures >= 3 {
				until := now.Add(time.Minute)
				acc.LockedUntil = &until
				return failures, &until, nil
			}
			acc.LockedUntil = nil
			return failures, nil, nil
		},
		ResetFailures: func(context.Context, string) error {
			failures = 0
			acc.LockedUntil = nil
			return nil
		},
		VerifyPassword: func(password, hash string) (bool, error) {
			return "hash:"+password == hash, nil
		},
		Errors: CredentialErrors{
			EngineNotReady:     errors.New("not ready"),
			AccountNotFound:    errNotFound,
			InvalidCredentials: errInvalid,
			AccountLocked:      errLocked,
			EmailNotVerified:   errUnverified,
		},
	}, &failures
}

func TestVerifyCredentialsUnknownEmailIsInvalid(t *testing.T) {
	deps, failures := credentialDepsFor(nil, time.Now())
	res, err := RunVerifyCredentials(context.Background(), "nobody@x.com", "pw", deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeInvalidCredentials || res.Account != nil {
		t.Fatalf("expected invalid without account, got %+v", res)
	}
	if *failures != 0 {
		t.Fatal("unknown email must not touch lockout state")
	}
}

func TestVerifyCredentialsLocksAfterThreshold(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	acc := &CredentialAccount{ID: "a1", Email: "b@x.com", PasswordHash: "hash:correct", EmailVerified: true}
	deps, _ := credentialDepsFor(acc, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := RunVerifyCredentials(ctx, "b@x.com", "wrong", deps)
		if err != nil || res.Outcome != OutcomeInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid, got %v %v", i+1, res.Outcome, err)
		}
	}
	res, err := RunVerifyCredentials(ctx, "b@x.com", "correct", deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeAccountLocked {
		t.Fatalf("expected locked, got %v", res.Outcome)
	}
	if res.LockedUntil == nil || !res.LockedUntil.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected lock expiry %v", res.LockedUntil)
	}
}

func TestVerifyCredentialsSuccessResetsCounter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	acc := &CredentialAccount{ID: "a1", Email: "b@x.com", PasswordHash: "hash:correct", EmailVerified: true}
	deps, failures := credentialDepsFor(acc, now)
	ctx := context.Background()

	_, _ = RunVerifyCredentials(ctx, "b@x.com", "wrong", deps)
	res, err := RunVerifyCredentials(ctx, "b@x.com", "correct", deps)
	if err != nil || res.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %v %v", res.Outcome, err)
	}
	if *failures != 0 {
		t.Fatalf("expected counter reset, got %d", *failures)
	}
}

func TestVerifyCredentialsUnverifiedTriggersGateBeforePasswordCheck(t *testing.T) {
	acc := &CredentialAccount{ID: "a1", Email: "u@x.com", PasswordHash: "hash:pw", EmailVerified: false}
	deps, failures := credentialDepsFor(acc, time.Now())
	triggered := 0
	deps.TriggerVerification = func(context.Context, CredentialAccount) error {
		triggered++
		return errors.New("smtp down")
	}

	res, err := RunVerifyCredentials(context.Background(), "u@x.com", "wrong", deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeEmailNotVerified {
		t.Fatalf("expected email_not_verified, got %v", res.Outcome)
	}
	if triggered != 1 {
		t.Fatalf("expected gate to run once, ran %d", triggered)
	}
	if *failures != 0 {
		t.Fatal("gate rejection must not count as a failure")
	}
}

func TestVerifyCredentialsUpgradesLegacyHash(t *testing.T) {
	acc := &CredentialAccount{ID: "a1", Email: "b@x.com", PasswordHash: "hash:pw", EmailVerified: true}
	deps, _ := credentialDepsFor(acc, time.Now())
	deps.UpgradeOnLogin = true
	deps.NeedsUpgrade = func(string) bool { return true }
	deps.HashPassword = func(pw string) (string, error) { return "new:" + pw, nil }
	stored := ""
	deps.UpdatePasswordHash = func(_ context.Context, _ string, hash string) error {
		stored = hash
		return nil
	}

	res, err := RunVerifyCredentials(context.Background(), "b@x.com", "pw", deps)
	if err != nil || res.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %v %v", res.Outcome, err)
	}
	if stored != "new:pw" || res.Account.PasswordHash != "new:pw" {
		t.Fatalf("expected upgraded hash, stored=%q", stored)
	}
}

func verificationDeps(box *tokenBox, mail *outbox, now *time.Time) VerificationDeps {
	counts := map[string]int{}
	return VerificationDeps{
		Tokens:       box.deps(24 * time.Hour),
		ResendLimit:  2,
		ResendWindow: time.Minute,
		Now:          func() time.Time { return *now },
		Allow: func(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
			counts[key]++
			return counts[key] <= limit, nil
		},
		MarkEmailVerified: func(_ context.Context, email string, _ time.Time) error {
			if email != "a@x.com" {
				return errNotFound
			}
			return nil
		},
		BuildURL: func(email, token string) string { return "https://blog/verify?token=" + token + "&email=" + email },
		Send:     mail.send,
		Errors: VerificationErrors{
			EngineNotReady:      errors.New("not ready"),
			VerificationInvalid: errVerifyInvalid,
			VerificationExpired: errVerifyExpired,
			AccountNotFound:     errNotFound,
		},
	}
}

func TestIssueVerificationThrottledToTwoPerWindow(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	deps := verificationDeps(box, mail, &now)
	target := VerificationTarget{AccountID: "a1", Email: "a@x.com"}

	for i := 0; i < 3; i++ {
		if _, err := RunIssueVerification(context.Background(), target, true, deps); err != nil {
			t.Fatalf("issue %d: %v", i+1, err)
		}
	}
	if len(mail.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(mail.sent))
	}
	if n := box.count("a@x.com"); n != 1 {
		t.Fatalf("expected older tokens purged, %d left", n)
	}
}

func TestIssueVerificationSwallowsDeliveryFailure(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{err: errors.New("smtp down")}
	now := time.Unix(1_700_000_000, 0)
	deps := verificationDeps(box, mail, &now)

	issued, err := RunIssueVerification(context.Background(), VerificationTarget{Email: "a@x.com"}, false, deps)
	if err != nil || !issued {
		t.Fatalf("expected issued without error, got %v %v", issued, err)
	}
	if box.count("a@x.com") != 1 {
		t.Fatal("token must stay valid after delivery failure")
	}
}

func TestConfirmEmailVerificationExpiredOnceThenInvalid(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	deps := verificationDeps(box, mail, &now)
	ctx := context.Background()

	if _, err := RunIssueVerification(ctx, VerificationTarget{Email: "a@x.com"}, false, deps); err != nil {
		t.Fatalf("issue: %v", err)
	}
	token := tokenValue(1)

	now = now.Add(25 * time.Hour)
	if err := RunConfirmEmailVerification(ctx, "a@x.com", token, deps); !errors.Is(err, errVerifyExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if err := RunConfirmEmailVerification(ctx, "a@x.com", token, deps); !errors.Is(err, errVerifyInvalid) {
		t.Fatalf("expected invalid on second lookup, got %v", err)
	}
}

func TestConfirmEmailVerificationSingleUse(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	deps := verificationDeps(box, mail, &now)
	ctx := context.Background()

	if _, err := RunIssueVerification(ctx, VerificationTarget{Email: "a@x.com"}, false, deps); err != nil {
		t.Fatalf("issue: %v", err)
	}
	token := tokenValue(1)
	if err := RunConfirmEmailVerification(ctx, "a@x.com", token, deps); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := RunConfirmEmailVerification(ctx, "a@x.com", token, deps); !errors.Is(err, errVerifyInvalid) {
		t.Fatalf("expected reuse to be invalid, got %v", err)
	}
	if err := RunConfirmEmailVerification(ctx, "a@x.com", "short", deps); !errors.Is(err, errVerifyInvalid) {
		t.Fatalf("expected malformed token to be invalid, got %v", err)
	}
}

func resetDeps(box *tokenBox, mail *outbox, now *time.Time, hashes map[string]string) PasswordResetDeps {
	return PasswordResetDeps{
		Tokens: box.deps(time.Hour),
		Now:    func() time.Time { return *now },
		FindAccount: func(_ context.Context, email string) (PasswordResetAccount, error) {
			if _, ok := hashes[email]; !ok {
				return PasswordResetAccount{}, errNotFound
			}
			return PasswordResetAccount{ID: "id-" + email, Email: email}, nil
		},
		ValidatePassword: func(pw string) error {
			if len(pw) < 3 {
				return errors.New("too short")
			}
			return nil
		},
		HashPassword: func(pw string) (string, error) { return "hash:" + pw, nil },
		UpdatePasswordHash: func(_ context.Context, id, hash string) error {
			hashes[id[len("id-"):]] = hash
			return nil
		},
		BuildURL: func(email, token string) string { return "https://blog/reset-password?token=" + token + "&email=" + email },
		Send:     mail.send,
		Errors: PasswordResetErrors{
			EngineNotReady:       errors.New("not ready"),
			PasswordResetInvalid: errResetInvalid,
			AccountNotFound:      errNotFound,
			RateLimited:          errRateLimited,
		},
	}
}

func TestRequestPasswordResetIsSilentForUnknownEmail(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	deps := resetDeps(box, mail, &now, map[string]string{"c@x.com": "hash:old"})

	if err := RunRequestPasswordReset(context.Background(), "ghost@x.com", deps); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if err := RunRequestPasswordReset(context.Background(), "c@x.com", deps); err != nil {
		t.Fatalf("known email must not error: %v", err)
	}
	if len(mail.sent) != 1 || mail.last().To != "c@x.com" {
		t.Fatalf("expected exactly one email to c@x.com, got %+v", mail.sent)
	}
	if got := mail.last().ExpiresAt; !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected 1h expiry, got %v", got)
	}
}

func TestRequestPasswordResetThrottledIsSilent(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	deps := resetDeps(box, mail, &now, map[string]string{"c@x.com": "hash:old"})
	deps.Throttle = func(context.Context, string) error { return errRateLimited }

	if err := RunRequestPasswordReset(context.Background(), "c@x.com", deps); err != nil {
		t.Fatalf("throttled request must not error: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatal("throttled request must not send")
	}
}

func TestConfirmPasswordResetLifecycle(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	hashes := map[string]string{"c@x.com": "hash:old"}
	deps := resetDeps(box, mail, &now, hashes)
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "c@x.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := tokenValue(1)

	if err := RunConfirmPasswordReset(ctx, "c@x.com", tokenValue(99), "newpw", deps); !errors.Is(err, errResetInvalid) {
		t.Fatalf("expected wrong token to fail, got %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, "c@x.com", token, "x", deps); err == nil || errors.Is(err, errResetInvalid) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, "c@x.com", token, "newpw", deps); err != nil {
		t.Fatalf("expected reset to succeed: %v", err)
	}
	if hashes["c@x.com"] != "hash:newpw" {
		t.Fatalf("password not updated: %q", hashes["c@x.com"])
	}
	if err := RunConfirmPasswordReset(ctx, "c@x.com", token, "again", deps); !errors.Is(err, errResetInvalid) {
		t.Fatalf("expected reuse to fail, got %v", err)
	}
}

func TestConfirmPasswordResetExpired(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	deps := resetDeps(box, mail, &now, map[string]string{"c@x.com": "hash:old"})
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "c@x.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	now = now.Add(time.Hour)
	if err := RunConfirmPasswordReset(ctx, "c@x.com", tokenValue(1), "newpw", deps); !errors.Is(err, errResetInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	if box.count("c@x.com") != 0 {
		t.Fatal("expired token must be removed")
	}
}

func TestConfirmPasswordResetStoreFailureKeepsToken(t *testing.T) {
	box := newTokenBox()
	mail := &outbox{}
	now := time.Unix(1_700_000_000, 0)
	hashes := map[string]string{"c@x.com": "hash:old"}
	deps := resetDeps(box, mail, &now, hashes)
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "c@x.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := tokenValue(1)

	storeDown := errors.New("db down")
	update := deps.UpdatePasswordHash
	deps.UpdatePasswordHash = func(context.Context, string, string) error { return storeDown }

	if err := RunConfirmPasswordReset(ctx, "c@x.com", token, "newpw", deps); !errors.Is(err, storeDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if hashes["c@x.com"] != "hash:old" {
		t.Fatalf("password must be unchanged, got %q", hashes["c@x.com"])
	}
	if box.count("c@x.com") != 1 {
		t.Fatal("token must survive a failed password update")
	}

	deps.UpdatePasswordHash = update
	if err := RunConfirmPasswordReset(ctx, "c@x.com", token, "newpw", deps); err != nil {
		t.Fatalf("retry with the same link must succeed: %v", err)
	}
	if hashes["c@x.com"] != "hash:newpw" || box.count("c@x.com") != 0 {
		t.Fatalf("expected updated password and no tokens, hash=%q tokens=%d", hashes["c@x.com"], box.count("c@x.com"))
	}
}
