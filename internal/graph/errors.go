package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per ErrorKind. An *Error unwraps to the sentinel of
// its kind so callers can use errors.Is without knowing the concrete type.
var (
	// ErrEmptyID is returned when a node is created without an id.
	ErrEmptyID = errors.New("empty node id")

	// ErrDuplicateID is returned when a node is created with an id that is
	// already present.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrNodeNotFound is returned when an operation or traversal start names
	// a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")
)

// ErrorKind categorizes caller-input errors.
type ErrorKind string

const (
	// ErrKindEmptyID indicates create was called with an empty id.
	ErrKindEmptyID ErrorKind = "EMPTY_ID"

	// ErrKindDuplicateID indicates create was called with an existing id.
	ErrKindDuplicateID ErrorKind = "DUPLICATE_ID"

	// ErrKindNodeNotFound indicates a lookup by id failed.
	ErrKindNodeNotFound ErrorKind = "NODE_NOT_FOUND"
)

// Error is a caller-input error detected before any mutation.
//
// These errors are never transient; there is no retry policy. The caller
// must correct the input and re-issue the call.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// ID is the offending node id ("" for EMPTY_ID).
	ID string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Kind, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the sentinel matching the error kind.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case ErrKindEmptyID:
		return ErrEmptyID
	case ErrKindDuplicateID:
		return ErrDuplicateID
	case ErrKindNodeNotFound:
		return ErrNodeNotFound
	default:
		return nil
	}
}

// NewEmptyIDError creates an Error for a missing id.
func NewEmptyIDError() *Error {
	return &Error{
		Kind:    ErrKindEmptyID,
		Message: "node id must not be empty",
	}
}

// NewDuplicateIDError creates an Error for an id that already exists.
func NewDuplicateIDError(id string) *Error {
	return &Error{
		Kind:    ErrKindDuplicateID,
		ID:      id,
		Message: fmt.Sprintf("node %q already exists", id),
	}
}

// NewNotFoundError creates an Error for an id that does not exist.
func NewNotFoundError(id string) *Error {
	return &Error{
		Kind:    ErrKindNodeNotFound,
		ID:      id,
		Message: fmt.Sprintf("node %q not found", id),
	}
}

// KindOf returns the ErrorKind of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsEmptyID returns true if err is an EMPTY_ID error.
func IsEmptyID(err error) bool { return KindOf(err) == ErrKindEmptyID }

// IsDuplicateID returns true if err is a DUPLICATE_ID error.
func IsDuplicateID(err error) bool { return KindOf(err) == ErrKindDuplicateID }

// IsNotFound returns true if err is a NODE_NOT_FOUND error.
func IsNotFound(err error) bool { return KindOf(err) == ErrKindNodeNotFound }
