package model

import "fmt"

// ValidationError means the canonical invoice could not be built because a
// mandatory field is missing or out of range. It is surfaced to the end user
// with the offending field named.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// SerializationError means the XML payload could not be produced from a
// canonical invoice. With the mapper gating construction this should be
// unreachable; it is kept as a distinct type so it maps to a server-side
// failure rather than a user-facing one.
type SerializationError struct {
	Element string
	Message string
	Cause   error
}

func (e *SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("xml serialization failed [%s]: %s (%v)", e.Element, e.Message, e.Cause)
	}
	return fmt.Sprintf("xml serialization failed [%s]: %s", e.Element, e.Message)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new serialization error
func NewSerializationError(element, message string, cause error) *SerializationError {
	return &SerializationError{
		Element: element,
		Message: message,
		Cause:   cause,
	}
}

// EmbeddingError means the base PDF bytes were not a usable PDF or the
// attachment step failed structurally. Kept distinct from ValidationError so
// operators can tell a broken upstream renderer from incomplete invoice data.
type EmbeddingError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *EmbeddingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pdf embedding failed [%s]: %s (%v)", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("pdf embedding failed [%s]: %s", e.Stage, e.Message)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// NewEmbeddingError creates a new embedding error
func NewEmbeddingError(stage, message string, cause error) *EmbeddingError {
	return &EmbeddingError{
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}
