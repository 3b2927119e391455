// Package middleware exposes the HTTP Request Authenticator and the
// authorization guards built on top of it.
//
// # Handlers
//
//   - [Authenticate] resolves the bearer credential through the Engine and installs
//     the identity on the request context. It never rejects.
//   - [Require] and [RequireRole] reject requests that lack an identity or role.
//   - [ClientIP] records the caller address for rate limiting and audit.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Authentication decisions are
// delegated to Engine.Authenticate; authorization is the guards' job.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Abort a request in Authenticate.
package middleware
