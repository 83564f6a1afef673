package store

import (
	"errors"
	"fmt"
)

const (
	// CodeNoRows is reported when a single row was requested but none matched.
	CodeNoRows = "PGRST116"
	// CodeUniqueViolation is reported when a write breaks a unique constraint.
	CodeUniqueViolation = "23505"
)

var (
	ErrNotFound = errors.New("no rows found")
	ErrConflict = errors.New("unique constraint violation")
)

// Error is a failure reported by a store backend. Code distinguishes the two
// conditions callers may handle locally (no rows, unique violation) from every
// other failure, which callers propagate unmodified.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "store error"
	}

	if e.Code != "" {
		msg = fmt.Sprintf("%v (code %v)", msg, e.Code)
	}

	if e.Details != "" {
		msg = fmt.Sprintf("%v: %v", msg, e.Details)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNoRows
	case ErrConflict:
		return e.Code == CodeUniqueViolation
	}
	return false
}

func NotFoundError(table string) *Error {
	return &Error{
		Code:    CodeNoRows,
		Message: fmt.Sprintf("no rows found in '%v'", table),
		Status:  406,
	}
}

func ConflictError(table string, details string) *Error {
	return &Error{
		Code:    CodeUniqueViolation,
		Message: fmt.Sprintf("duplicate key value violates unique constraint on '%v'", table),
		Details: details,
		Status:  409,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
