package internal

import (
	"strings"
	"testing"
)

func TestNewTokenValueShape(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		v, err := NewTokenValue()
		if err != nil {
			t.Fatalf("NewTokenValue failed: %v", err)
		}
		if len(v) != 64 {
			t.Fatalf("expected 64 hex chars, got %d", len(v))
		}
		if !ValidTokenValue(v) {
			t.Fatalf("generated value rejected: %q", v)
		}
		if _, dup := seen[v]; dup {
			t.Fatal("duplicate token value")
		}
		seen[v] = struct{}{}
	}
}

func TestHashTokenValueIsStable(t *testing.T) {
	a := HashTokenValue("abc")
	if a != HashTokenValue("abc") {
		t.Fatal("hash must be deterministic")
	}
	if a == HashTokenValue("abd") {
		t.Fatal("different inputs must hash differently")
	}
	if a != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected sha256 digest %s", a)
	}
}

func TestValidTokenValueRejectsMalformed(t *testing.T) {
	cases := []string{"", "abc", strings.Repeat("z", 64), strings.Repeat("a", 63)}
	for _, c := range cases {
		if ValidTokenValue(c) {
			t.Fatalf("expected %q to be rejected", c)
		}
	}
}

// FuzzDecodeStateValue exercises state decoding with arbitrary strings.
func FuzzDecodeStateValue(f *testing.F) {
	f.Add("")
	f.Add("!!!not-base64!!!")
	if s, err := NewStateValue(); err == nil {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		_ = DecodeStateValue(input)
	})
}
