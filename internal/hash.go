package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKeyPart hashes a caller-supplied value (username, IP) before it is used
// inside a Redis key, so raw identifiers never appear in key names.
func HashKeyPart(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
