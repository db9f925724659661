package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable machine-readable error category returned to callers.
type Kind string

const (
	KindNotFound               Kind = "NotFound"
	KindInvalidTransition      Kind = "InvalidTransition"
	KindConflict               Kind = "ConflictError"
	KindIncompleteConfirmation Kind = "IncompleteConfirmation"
	KindInsufficientFunds      Kind = "InsufficientFunds"
	KindValidation             Kind = "ValidationError"
	KindAuthorization          Kind = "AuthorizationError"
	KindDuplicateRating        Kind = "DuplicateRating"
	KindServiceUnavailable     Kind = "ServiceUnavailable"
)

// Error is a recoverable domain failure. Allowed is only set for InvalidTransition.
type Error struct {
	Kind    Kind
	Message string
	Allowed []string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrIncompleteConfirmation = &Error{Kind: KindIncompleteConfirmation}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrAuthorization          = &Error{Kind: KindAuthorization}
	ErrDuplicateRating        = &Error{Kind: KindDuplicateRating}
	ErrServiceUnavailable     = &Error{Kind: KindServiceUnavailable}
)

// ErrVersionConflict is returned by repositories when an optimistic update lost the
// compare-and-swap. It never reaches callers: the orchestrator retries or maps it to
// ConflictError.
var ErrVersionConflict = errors.New("version conflict")

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return New(KindInsufficientFunds, format, args...)
}

// InvalidTransition reports the allowed targets so clients can correct the request.
func InvalidTransition(subject, from, to string, allowed []string) *Error {
	msg := fmt.Sprintf("%s cannot move from %q to %q", subject, from, to)
	if len(allowed) == 0 {
		msg += " (status is terminal)"
	} else {
		msg += " (allowed: " + strings.Join(allowed, ", ") + ")"
	}
	return &Error{Kind: KindInvalidTransition, Message: msg, Allowed: allowed}
}

// Unavailable wraps an infrastructure fault.
func Unavailable(err error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: "storage unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
