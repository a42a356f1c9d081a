// Package herror defines the Horology error taxonomy as a
// small set of typed errors, translated to gRPC status codes at the API
// edge (pkg/api).
package herror

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy's error codes, surfaced verbatim in the
// RPC response's "code" field and the REST error body's "code".
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindUnauthenticated  Kind = "unauthenticated"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindDuplicate        Kind = "duplicate"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindNotLeader        Kind = "not_leader"
	KindUnavailable      Kind = "unavailable"
	KindDeadlineExceeded Kind = "deadline_exceeded"
	KindInternal         Kind = "internal"
)

// Error is the taxonomy's concrete type. RetryAfterMs is populated for
// QuotaExceeded and NotLeader so clients know when to retry; Field holds
// the offending field for InvalidInput and the quota kind for
// QuotaExceeded.
type Error struct {
	Kind         Kind
	Message      string
	Field        string
	RetryAfterMs int64
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is(err, &herror.Error{Kind: herror.KindNotFound})
// match any *Error of the same Kind; callers should prefer
// herror.KindOf(err) for branching on the taxonomy.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the taxonomy kind from err, defaulting to KindInternal
// for errors that never went through this package (a bug, per spec).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func new(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(field, format string, args ...any) *Error {
	e := new(KindInvalidInput, format, args...)
	e.Field = field
	return e
}

func Unauthenticated(format string, args ...any) *Error {
	return new(KindUnauthenticated, format, args...)
}

func PermissionDenied(format string, args ...any) *Error {
	return new(KindPermissionDenied, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return new(KindNotFound, format, args...)
}

func Duplicate(format string, args ...any) *Error {
	return new(KindDuplicate, format, args...)
}

// QuotaExceeded records the kind of quota tripped (burst, daily,
// schedule_rate, cancel_rate) in Field and the client-facing retry hint
// in milliseconds.
func QuotaExceeded(kind string, retryAfterMs int64, format string, args ...any) *Error {
	e := new(KindQuotaExceeded, format, args...)
	e.RetryAfterMs = retryAfterMs
	e.Field = kind
	return e
}

func NotLeader(retryAfterMs int64, format string, args ...any) *Error {
	e := new(KindNotLeader, format, args...)
	e.RetryAfterMs = retryAfterMs
	return e
}

func Unavailable(format string, args ...any) *Error {
	return new(KindUnavailable, format, args...)
}

func DeadlineExceeded(format string, args ...any) *Error {
	return new(KindDeadlineExceeded, format, args...)
}

func Internal(cause error, format string, args ...any) *Error {
	e := new(KindInternal, format, args...)
	e.cause = cause
	return e
}

// Wrap attaches kind to an existing error without discarding it.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := new(kind, format, args...)
	e.cause = cause
	return e
}
