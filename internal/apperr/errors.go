// Package apperr holds the error kinds shared by services and mapped to HTTP by handlers.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound means the entity is missing or outside the caller's scope. The two are never distinguished.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNoScope means the caller's identity lacks the profile or agent record needed to scope queries.
	ErrNoScope = errors.New("identity has no usable organization")
	// ErrConflict means a uniqueness constraint would be violated.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field-level messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidation returns an empty ValidationError ready for Add.
func NewValidation() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ConflictError is an ErrConflict that names the colliding input field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return "conflict on " + e.Field
}

// Is makes errors.Is(err, ErrConflict) hold for a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
