package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure. The HTTP layer maps kinds to status codes.
type Kind int

const (
	// KindStore covers store and upstream failures the caller cannot fix.
	KindStore Kind = iota
	// KindInput is a missing or malformed argument, an unlinked account or a token mismatch.
	KindInput
	// KindConflict is a store constraint violation.
	KindConflict
	// KindNotFound is an operation on a record that does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "store"
	}
}

// Error is a classified service error. Msg is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Unclassified errors are KindStore.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

// MessageOf returns the client-facing message of err, if any.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return ""
}

func inputError(msg string) error {
	return &Error{Kind: KindInput, Msg: msg}
}

func conflictError(err error) error {
	return &Error{Kind: KindConflict, Err: err}
}

func notFoundError(msg string, err error) error {
	return &Error{Kind: KindNotFound, Msg: msg, Err: err}
}

func storeError(op string, err error) error {
	return &Error{Kind: KindStore, Err: fmt.Errorf("%s: %w", op, err)}
}

// Client-facing messages.
const (
	msgTokenMismatch = "invalid auth_token for userid"
)
