// Package rate provides the Redis-backed fixed-window limiter guarding login,
// refresh, and registration.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout
// under the configured prefix (default "auth:rl:"), identifiers hashed:
//   - login:u:<h>       : failed logins per username
//   - login:ip:<h>      : failed logins per client IP
//   - refresh:ip:<h>    : refresh attempts per client IP
//   - register:ip:<h>   : registrations per client IP
//
// # What this package must NOT do
//
//   - Decide what to do when Redis is down; callers choose fail-open or fail-closed.
//   - Be imported outside the goSession module.
package rate
