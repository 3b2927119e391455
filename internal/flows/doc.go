// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunAuthenticate, RunLogin, RunRefresh, RunRegister,
// RunLogout) accepts a typed dependency struct of function fields and returns
// results without side-effects beyond those dependencies. The Engine builds
// the dependency sets once and delegates to them.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token issuer, user provider, rate
// limiter, audit dispatcher and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
