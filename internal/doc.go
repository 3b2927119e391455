// Package internal contains helpers that are private to goSession: opaque token
// and client secret generation, and key-part hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for authenticate, login, refresh, register
//   - rate: Redis fixed-window rate limiter
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
