package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrInvalidRunStatus indicates an unknown run status value.
	ErrInvalidRunStatus = errors.New("invalid run status")

	// ErrDedupeKeyRequired indicates a required dedupe key field is empty.
	ErrDedupeKeyRequired = errors.New("dedupe_key is required")

	// ErrRunRecordNotFound indicates a run record was not found.
	ErrRunRecordNotFound = errors.New("run record not found")
)
