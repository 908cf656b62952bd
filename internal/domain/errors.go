package domain

import (
	"errors"
	"fmt"
)

// Validation errors for rating data integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnknownCriterion    = errors.New("unknown ACMG/AMP criterion")
	ErrUnknownSource       = errors.New("unknown assessment source")
	ErrInvalidPresence     = errors.New("invalid presence")
	ErrInvalidRuleStrength = errors.New("invalid ACMG/AMP rule strength")
	ErrInvalidVariant      = errors.New("invalid variant identifier")
)

// PersistenceError is an opaque failure reported by a rating store.
// It is handed to callers unchanged; nothing in the core translates it into a classification.
type PersistenceError struct {
	Op         string
	Variant    string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rating %s %s: status %d: %v", e.Op, e.Variant, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("rating %s %s: %v", e.Op, e.Variant, e.Err)
}

// Unwrap returns the underlying error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err for the given store operation.
func NewPersistenceError(op, variant string, statusCode int, err error) *PersistenceError {
	return &PersistenceError{Op: op, Variant: variant, StatusCode: statusCode, Err: err}
}

// AnnotationError is a failure retrieving automated judgments from a prediction source.
type AnnotationError struct {
	Source Source
	Err    error
}

// Error implements the error interface
func (e *AnnotationError) Error() string {
	return fmt.Sprintf("annotation source %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error
func (e *AnnotationError) Unwrap() error {
	return e.Err
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidationError reports whether err stems from invalid caller input rather than a
// failing collaborator.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrUnknownCriterion) ||
		errors.Is(err, ErrUnknownSource) ||
		errors.Is(err, ErrInvalidPresence) ||
		errors.Is(err, ErrInvalidRuleStrength) ||
		errors.Is(err, ErrInvalidVariant)
}
