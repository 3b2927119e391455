// Package jwt is the signed-token fallback provider: a stateless identity
// carrier used when an opaque token does not resolve. Callers only mint,
// validate, and extract claims; no store lookup is involved.
package jwt
