package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/session"
)

// ErrUnresolved is returned by a [Verifier] that does not recognise the
// credential. It is not a failure.
var ErrUnresolved = errors.New("credential unresolved")

// Verifier is one authentication scheme in the ordered chain.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, credential string) (session.Record, error)
}

type verifierFunc struct {
	name string
	fn   func(context.Context, string) (session.Record, error)
}

func (v verifierFunc) Name() string { return v.name }

func (v verifierFunc) Verify(ctx context.Context, credential string) (session.Record, error) {
	return v.fn(ctx, credential)
}

// NewVerifier adapts fn into a named [Verifier].
func NewVerifier(name string, fn func(context.Context, string) (session.Record, error)) Verifier {
	return verifierFunc{name: name, fn: fn}
}

// Failure records a verifier that errored for a reason other than
// [ErrUnresolved].
type Failure struct {
	Verifier string
	Err      error
}

// AuthenticateResult is the outcome of one pass over the verifier chain.
type AuthenticateResult struct {
	Resolved bool
	Record   session.Record
	Verifier string
	Failures []Failure
}

// RunAuthenticate tries verifiers in order and stops at the first one that
// resolves. An empty credential resolves nothing and consults no verifier.
// Errors and panics inside a verifier are collected, never returned.
func RunAuthenticate(ctx context.Context, credential string, verifiers []Verifier) AuthenticateResult {
	var result AuthenticateResult
	if credential == "" {
		return result
	}

	for _, v := range verifiers {
		if v == nil {
			continue
		}
		record, err := safeVerify(ctx, v, credential)
		if err == nil {
			result.Resolved = true
			result.Record = record
			result.Verifier = v.Name()
			return result
		}
		if errors.Is(err, ErrUnresolved) {
			continue
		}
		result.Failures = append(result.Failures, Failure{Verifier: v.Name(), Err: err})
	}

	return result
}

// ErrVerifierPanic wraps a panic recovered from a verifier.
var ErrVerifierPanic = errors.New("verifier panicked")

func safeVerify(ctx context.Context, v Verifier, credential string) (record session.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = session.Record{}
			err = fmt.Errorf("%w: %v", ErrVerifierPanic, r)
		}
	}()
	return v.Verify(ctx, credential)
}
