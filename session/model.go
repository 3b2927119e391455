package session

import "time"

// Record is the identity an opaque token points to.
//
// Records are immutable once written. The only mutable fact about a token is
// whether its entry still exists in the [Store].
type Record struct {
	SubjectID   int64
	SubjectName string
	Role        string
}

// Entry is one key/value pair written by [Store.SetAll].
type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}
