// Package apierror carries the error taxonomy shared by the slack and jira
// clients and the CLI exit-code mapping. Per-item failures (one user, one
// thread, one ticket) are isolated by callers; whole-call failures surface.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a remote or local failure.
type Kind int

const (
	KindFatal Kind = iota
	KindConfig
	KindAuth
	KindNotFound
	KindRetryable
	KindCancelled
	KindIO
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindRetryable:
		return "retryable"
	case KindCancelled:
		return "cancelled"
	case KindIO:
		return "io"
	case KindSchema:
		return "schema"
	default:
		return "fatal"
	}
}

// Error is a classified error. Entity names the affected item
// (e.g. "user=U02ABC", "ticket=PRD-123") so warnings stay greppable.
type Error struct {
	Kind       Kind
	Entity     string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithEntity returns a copy of e naming the affected entity.
func (e *Error) WithEntity(entity string) *Error {
	cp := *e
	cp.Entity = entity
	return &cp
}

// KindOf reports the kind of err, or KindFatal for unclassified errors.
// context.Canceled and context.DeadlineExceeded count as cancelled even
// when they were never wrapped.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindFatal
}

// Is-style helpers used at call sites.
func IsAuth(err error) bool      { return KindOf(err) == KindAuth }
func IsNotFound(err error) bool  { return KindOf(err) == KindNotFound }
func IsRetryable(err error) bool { return KindOf(err) == KindRetryable }
func IsConfig(err error) bool    { return KindOf(err) == KindConfig }

// RetryAfterOf returns the server-advised retry delay, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindRetryable && ae.RetryAfter > 0 {
		return ae.RetryAfter, true
	}
	return 0, false
}
