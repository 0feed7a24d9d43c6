// Package perr defines the closed set of error kinds that cross component
// boundaries in the gateway: config, auth, rate-limit, provider, policy, and
// internal. Every kind carries enough context to decide retry/backoff and
// user-facing presentation without string-matching error text.
package perr

import "fmt"

// Kind classifies an Error for retry/backoff and presentation decisions.
type Kind string

const (
	KindConfig    Kind = "config"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindProvider  Kind = "provider"
	KindPolicy    Kind = "policy"
	KindInternal  Kind = "internal"
)

// Error is the gateway's typed error. Retryable is only meaningful for
// KindProvider and KindRateLimit; other kinds are never retried.
type Error struct {
	Kind      Kind
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a non-retryable error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retryable builds a retryable error, only sensible for Provider/RateLimit kinds.
func Retryable(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Retryable: true, Err: err}
}

// Wrap annotates err with op, preserving kind/retryable if err is already
// a *Error, otherwise classifying it as internal.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, Op: op, Retryable: e.Retryable, Err: e}
	}
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsRetryable reports whether err is a *Error marked retryable.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Retryable
}
