// Package goSession authenticates HTTP callers with opaque session tokens
// stored in Redis, rotating single-use refresh tokens, and an optional
// signed-token (JWT) fallback.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], [Issuer] and
// value types ([Identity], [AuthResponse], [MetricsSnapshot]). Flow orchestration, rate
// limiting and audit dispatch live under internal/. The key-value adapter and record codec
// live in session/, the signed-token manager in jwt/.
//
// # Token model
//
// An opaque token is 32 random bytes, base64url encoded. Its validity is membership in the
// store: access tokens live under "auth:token:" and refresh tokens under "auth:refresh:",
// each with its own TTL. Revocation is deletion. Refresh tokens are consumed with an atomic
// GET+DEL, so a refresh token can be spent at most once.
//
// # Request authentication
//
// [Engine.Authenticate] runs an ordered list of verifiers: the opaque access token first,
// then the signed token. Failures on one path fall through to the next and are logged;
// they never abort the request. The middleware package installs the result with
// [WithIdentity]; handlers read it with [IdentityFromContext].
//
// # What this package must NOT do
//
//   - Store identity in globals. Identity travels in the request context only.
//   - Return a token that was not persisted. Pair issuance is all-or-nothing.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
