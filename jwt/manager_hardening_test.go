package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

var numericDateEqual = cmp.Comparer(func(a, b *gjwt.NumericDate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Time.Equal(b.Time)
})

func TestCreateAndParseSessionRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	now := time.Unix(1_700_000_000, 0)
	m, err := NewManager(Config{
		SessionTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "blogauth",
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, expires, err := m.CreateSession("acc-1", "AUTHOR", "a@x.com", "Ada")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", expires)
	}

	claims, err := m.ParseSession(token)
	if err != nil {
		t.Fatalf("parse session: %v", err)
	}
	want := &SessionClaims{
		Role:  "AUTHOR",
		Email: "a@x.com",
		Name:  "Ada",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "blogauth",
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if diff := cmp.Diff(want, claims, numericDateEqual); diff != "" {
		t.Fatalf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateSessionRequiresSubject(t *testing.T) {
	m, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.CreateSession("", "USER", "", ""); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
}

func TestParseSessionRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SessionClaims{Role: "ADMIN", RegisteredClaims: gjwt.RegisteredClaims{Subject: "acc-1", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseSessionIssuerAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	now := time.Unix(1_700_000_000, 0)
	clock := now
	m, err := NewManager(Config{
		SessionTTL:    time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "issuer-a",
		Leeway:        30 * time.Second,
		Now:           func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.CreateSession("acc-1", "USER", "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	clock = now.Add(time.Minute + 20*time.Second)
	if _, err := m.ParseSession(token); err != nil {
		t.Fatalf("expected token inside leeway to parse, got %v", err)
	}
	clock = now.Add(time.Minute + 40*time.Second)
	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("expected token past leeway to be rejected")
	}

	other, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, Issuer: "issuer-b", Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.ParseSession(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestParseSessionUnknownKidFails(t *testing.T) {
	pub, priv := newEdKeys(t)
	signer, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, KeyID: "k1", VerifyKeys: map[string][]byte{"k1": pub}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := signer.CreateSession("acc-1", "USER", "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	pub2, _ := newEdKeys(t)
	verifier, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := verifier.ParseSession(token); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":       {SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		"bad method":     {SessionTTL: time.Minute, SigningMethod: "rs256"},
		"missing key":    {SessionTTL: time.Minute, SigningMethod: MethodHS256},
		"ed without pub": {SessionTTL: time.Minute, SigningMethod: MethodEd25519},
		"huge leeway":    {SessionTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config to be rejected")
			}
		})
	}
}
