// Package errors defines the checkout error taxonomy. Every failure surfaced to
// a client carries a Kind (mapped to an HTTP status), a stable machine-checkable
// Reason and a human-readable Message.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindInvalidState    Kind = "invalid_state"
	KindConflict        Kind = "conflict"
	KindPaymentDeclined Kind = "payment_declined"
	KindInternal        Kind = "internal"
)

// Error is the error type returned by repositories and services.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind, so any not-found
// error matches ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrNotFound    = &Error{Kind: KindNotFound, Reason: "not_found", Message: "resource not found"}
	ErrConflict    = &Error{Kind: KindConflict, Reason: "conflict", Message: "resource already exists"}
	ErrStaleStatus = &Error{Kind: KindInvalidState, Reason: "stale_status", Message: "status changed concurrently"}
)

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindInvalidInput, Reason: "invalid_" + field, Message: message, Field: field}
}

func NewNotFound(reason, message string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: message}
}

func NewInvalidState(reason, message string) *Error {
	return &Error{Kind: KindInvalidState, Reason: reason, Message: message}
}

func NewConflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

func NewPaymentDeclined(message string) *Error {
	return &Error{Kind: KindPaymentDeclined, Reason: "payment_declined", Message: message}
}

// Internal wraps a storage or transport failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: "internal", Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As exposes the standard library helper so callers need a single import.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Is exposes the standard library helper so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// New returns a plain error.
func New(text string) error {
	return stderrors.New(text)
}
