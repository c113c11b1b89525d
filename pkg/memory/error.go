package memory

import (
	"errors"
	"fmt"
)

// Code is the wire error code reported to callers of the memory subsystem.
type Code string

const (
	CodeInvalidParams  Code = "INVALID_PARAMS"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
	CodeInternal       Code = "INTERNAL"
)

// Error is a memory operation failure with a stable wire code.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}

	return string(e.Code) + ": " + e.Message
}

// Is reports whether target is an *Error with the same code. A target with a
// non-empty message only matches errors carrying that exact message, which lets
// ErrInvalidCursor be distinguished from other INVALID_PARAMS failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrInvalidParams  = &Error{Code: CodeInvalidParams}
	ErrForbidden      = &Error{Code: CodeForbidden}
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrConflict       = &Error{Code: CodeConflict}
	ErrNotImplemented = &Error{Code: CodeNotImplemented}

	// ErrInvalidCursor is returned when a pagination token cannot be decoded.
	ErrInvalidCursor = &Error{Code: CodeInvalidParams, Message: "invalid cursor"}

	// ErrNotConfigured is returned when a scope has no backing store.
	ErrNotConfigured = errors.New("memory scope not configured")
)

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entry.
func NotFoundError(id string, scope Scope, namespace string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("entry %q not found in %s:%s", id, scope, namespace),
		Details: map[string]any{"id": id},
	}
}

// ConflictError reports that a write was forked into a new conflict entry.
func ConflictError(conflictOf, conflictEntry string) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: fmt.Sprintf("entry %q changed concurrently, conflict recorded as %q", conflictOf, conflictEntry),
		Details: map[string]any{
			"conflict_of":    conflictOf,
			"conflict_entry": conflictEntry,
		},
	}
}

// CodeOf returns the wire code for err. Errors that are not *Error map to
// CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var merr *Error
	if errors.As(err, &merr) {
		return merr.Code
	}

	return CodeInternal
}
