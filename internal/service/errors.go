package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/tooling-tracker/internal/repository"
)

// ValidationError reports caller input that fails a precondition.  It is
// always raised before anything is written.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ConflictError reports a uniqueness violation or a lost race for a row
// lock.  Re-reading and retrying is safe.
type ConflictError struct {
	Msg string
	Err error
}

func (e *ConflictError) Error() string { return e.Msg }
func (e *ConflictError) Unwrap() error { return e.Err }

// DomainError reports a business rule violation with individually valid
// inputs.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

// NotFoundError reports a reference to a tool, machine or slot that does
// not exist.
type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %v not found", e.Entity, e.Key) }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// translate converts store errors into the taxonomy above.  Errors that
// are already typed pass through; anything else is wrapped with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		ce *ConflictError
		de *DomainError
		ne *NotFoundError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ce), errors.As(err, &de), errors.As(err, &ne):
		return err
	case errors.Is(err, repository.ErrDuplicate):
		return &ConflictError{Msg: op + ": already exists", Err: err}
	case errors.Is(err, repository.ErrLockConflict):
		return &ConflictError{Msg: op + ": concurrent update, retry", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
