// Package fault defines the error taxonomy shared by the core operations.
// Every error surfaced to a caller carries one of four kinds so the
// presentation edge can map it to a transport status without inspecting
// message text.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown marks errors that escaped classification (internal failures).
	KindUnknown Kind = iota
	// KindValidation marks malformed or out-of-range input. Permanent for the
	// given input; callers should not retry.
	KindValidation
	// KindNotFound marks a missing entity reference.
	KindNotFound
	// KindConflict marks state-machine violations, insufficient stock or
	// balance, and lost concurrent-write races. The only kind that may
	// succeed on a caller-level re-read and retry.
	KindConflict
	// KindPermission marks ownership or role mismatches.
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPermission:
		return "permission"
	default:
		return "unknown"
	}
}

// Error is a classified error. It wraps an optional cause.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind reports the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// Is lets errors.Is match two fault errors of the same kind and message,
// so package-level sentinels built with the constructors below behave like
// ordinary sentinel errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.msg == t.msg
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func Permissionf(format string, args ...any) *Error {
	return newf(KindPermission, format, args...)
}

// Wrap attaches a cause while keeping the kind and message of the outer error.
func Wrap(e *Error, cause error) *Error {
	if e == nil {
		return nil
	}
	return &Error{kind: e.kind, msg: e.msg, cause: cause}
}

// Kinder is implemented by domain errors that classify themselves without
// being *Error values.
type Kinder interface {
	Kind() Kind
}

// KindOf extracts the kind from any error in the chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
