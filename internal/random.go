package internal

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// OpaqueTokenBytes is the amount of randomness in an opaque token (256 bits).
const OpaqueTokenBytes = 32

// NewOpaqueToken returns a base64url (unpadded) string of OpaqueTokenBytes
// random bytes.
func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewClientSecret returns a 64-character hex secret built from two random
// UUIDs with the dashes removed.
func NewClientSecret() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(a.String(), "-", "") + strings.ReplaceAll(b.String(), "-", ""), nil
}
