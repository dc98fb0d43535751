// Package crmerr defines the failure conditions shared by the pipeline and
// lead services. Callers match them with errors.Is.
package crmerr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means an operation that records an actor ran without one.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the referenced entity is missing or inactive.
	ErrNotFound = errors.New("not found")
	// ErrValidation means a required field is empty or inconsistent.
	ErrValidation = errors.New("validation failed")
	// ErrIntegrity means an atomic multi-write could not commit.
	ErrIntegrity = errors.New("integrity failure")
)

// Error carries a human-readable message and the sentinel it belongs to.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// NotFound reports a missing entity of the given kind.
func NotFound(kind, id string) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s not found: %s", kind, id)}
}

// Validation reports a rejected input.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a missing actor for the named operation.
func Unauthorized(op string) error {
	return &Error{Kind: ErrUnauthorized, Msg: fmt.Sprintf("%s: no authenticated actor", op)}
}

// Integrity wraps a failed transaction. Errors that already carry one of the
// package sentinels are returned unchanged so the original kind survives the
// rollback.
func Integrity(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &integrityError{op: op, err: err}
}

// IsKnown reports whether err matches one of the package sentinels.
func IsKnown(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrIntegrity)
}

type integrityError struct {
	op  string
	err error
}

func (e *integrityError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *integrityError) Unwrap() []error { return []error{ErrIntegrity, e.err} }
