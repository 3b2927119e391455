package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

// FuzzExtractClaims exercises the signed-token parser with arbitrary strings.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzExtractClaims(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	mgr, err := NewManager(Config{
		TTL:           5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
		RequireIAT:    true,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		f.Fatal(err)
	}

	validToken, err := mgr.Mint(1, "fuzz", "CLIENT")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(validToken)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJ1aWQiOjF9.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOjF9.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ExtractClaims(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("ExtractClaims returned nil claims without error")
		}
	})
}
