package rag

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when an upload or question is rejected before processing.
	ErrValidation = errors.New("validation failed")

	// ErrExtraction is returned when no text can be read from a document.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbedding is returned when the embedding provider fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration is returned when the generative provider fails.
	ErrGeneration = errors.New("generation failed")

	// ErrDependencyTimeout is returned when a provider call exceeds its deadline.
	ErrDependencyTimeout = errors.New("dependency timed out")

	// ErrDimensionMismatch means two vectors that must share a length do not.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSuperseded is returned by an upload that lost to a newer one.
	ErrSuperseded = errors.New("upload superseded by a newer upload")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// WrapProviderError tags a failed provider call with kind, or with
// ErrDependencyTimeout when the call ran out of time.
func WrapProviderError(kind error, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrDependencyTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
