package blogauth

import (
	"context"
	"errors"
	"testing"
)

func googleProfile(email, subject string) FederatedProfile {
	return FederatedProfile{
		Provider:      "google",
		Subject:       subject,
		Email:         email,
		EmailVerified: true,
		Name:          "Gina",
		AccessToken:   "at-" + subject,
		RefreshToken:  "rt-" + subject,
		TokenType:     "Bearer",
	}
}

func TestFederatedSignInCreatesAccount(t *testing.T) {
	h := newTestHarness(t, nil)

	res, err := h.engine.CompleteFederatedSignIn(context.Background(), googleProfile("G@x.com", "sub-1"))
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if !res.Created || res.Linked {
		t.Fatalf("expected created, got %+v", res)
	}
	acc := h.accounts.account(t, "g@x.com")
	if acc.HasPassword() || !acc.EmailVerified() || acc.Role != RoleUser {
		t.Fatalf("unexpected account %+v", acc)
	}
	if _, err := h.engine.ParseSession(res.SessionToken); err != nil {
		t.Fatalf("session invalid: %v", err)
	}

	// A password login to this account is indistinguishable from a wrong password.
	if _, err := h.engine.Login(context.Background(), "g@x.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestFederatedSignInLinksAccountWithoutIdentity(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.Metrics.Enabled = true })
	seeded := h.seedAccount(t, "a@x.com", "pw1", false)
	ctx := context.Background()

	res, err := h.engine.CompleteFederatedSignIn(ctx, googleProfile("a@x.com", "sub-a"))
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if !res.Linked || res.Account.ID != seeded.ID {
		t.Fatalf("expected link to existing account, got %+v", res)
	}
	if !h.accounts.account(t, "a@x.com").EmailVerified() {
		t.Fatal("provider-verified link should verify the email")
	}

	// Returning user signs in through the stored identity.
	again, err := h.engine.CompleteFederatedSignIn(ctx, googleProfile("a@x.com", "sub-a"))
	if err != nil || again.Linked || again.Created {
		t.Fatalf("expected plain sign in, got %+v / %v", again, err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricFederatedLinked] != 1 || snap.Counters[MetricFederatedSignIn] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestFederatedSignInRefusesSecondIdentity(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.CompleteFederatedSignIn(ctx, googleProfile("a@x.com", "sub-1")); err != nil {
		t.Fatalf("first sign in failed: %v", err)
	}
	_, err := h.engine.CompleteFederatedSignIn(ctx, googleProfile("a@x.com", "sub-2"))
	if !errors.Is(err, ErrFederatedAccountNotLinked) {
		t.Fatalf("expected not linked, got %v", err)
	}
}

func TestFederatedSignInRequiresVerifiedEmail(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seedVerified(t, "a@x.com", "pw1")

	p := googleProfile("a@x.com", "sub-1")
	p.EmailVerified = false
	if _, err := h.engine.CompleteFederatedSignIn(context.Background(), p); !errors.Is(err, ErrFederatedEmailUnverified) {
		t.Fatalf("expected unverified rejection, got %v", err)
	}
}

func TestFederatedSignInIncompleteProfile(t *testing.T) {
	h := newTestHarness(t, nil)

	for _, p := range []FederatedProfile{
		{Subject: "s", Email: "a@x.com"},
		{Provider: "google", Email: "a@x.com"},
		{Provider: "google", Subject: "s"},
	} {
		if _, err := h.engine.CompleteFederatedSignIn(context.Background(), p); !errors.Is(err, ErrFederatedProfileInvalid) {
			t.Fatalf("expected invalid profile for %+v, got %v", p, err)
		}
	}
}

func TestFederatedSignInRefreshesTokens(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.CompleteFederatedSignIn(ctx, googleProfile("a@x.com", "sub-1")); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	p := googleProfile("a@x.com", "sub-1")
	p.AccessToken = "at-new"
	p.RefreshToken = ""
	if _, err := h.engine.CompleteFederatedSignIn(ctx, p); err != nil {
		t.Fatalf("second sign in failed: %v", err)
	}

	id, err := h.accounts.FindFederatedIdentity(ctx, "google", "sub-1")
	if err != nil {
		t.Fatalf("identity lookup: %v", err)
	}
	if id.AccessToken != "at-new" || id.RefreshToken != "rt-sub-1" {
		t.Fatalf("unexpected tokens %+v", id)
	}
}
