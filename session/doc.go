// Package session provides the Redis-backed expiring key-value adapter and the
// compact binary encoding for identity records.
//
// # Binary encoding
//
// Records are stored as a versioned binary value (see [Encode]). [Decode] also
// accepts the JSON records written by the previous deployment so tokens issued
// before a rollout keep resolving until they expire.
//
// # Failure semantics
//
// [Store] distinguishes an absent key ([ErrNotFound]) from a store that cannot
// be reached ([ErrUnavailable]). Absence is the only invalidity signal: there
// are no tombstones, and revocation is deletion.
//
// # Architecture boundaries
//
// This package owns Redis I/O and the [Record] encoding. It does NOT know about
// key namespaces, token generation, or authentication policy; those belong to
// the root package.
//
// # What this package must NOT do
//
//   - Import goSession, jwt, or any flow package (no upward imports).
//   - Hold locks across Redis calls.
package session
