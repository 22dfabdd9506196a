package backup

import (
	"fmt"
)

// EngineError represents errors that occur during backup engine operations
type EngineError struct {
	Type    EngineErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// EngineErrorType represents different types of engine errors
type EngineErrorType string

const (
	// EngineErrorTypeValidation covers authentication and tamper failures
	EngineErrorTypeValidation EngineErrorType = "VALIDATION_ERROR"
	// EngineErrorTypeStructure covers malformed or incomplete archives
	EngineErrorTypeStructure EngineErrorType = "STRUCTURE_ERROR"
	// EngineErrorTypePolicy covers policy violations (weak password, size, age)
	EngineErrorTypePolicy EngineErrorType = "POLICY_ERROR"
	// EngineErrorTypeStorage covers archive storage failures
	EngineErrorTypeStorage EngineErrorType = "STORAGE_ERROR"
	// EngineErrorTypeDatabase covers data store failures
	EngineErrorTypeDatabase EngineErrorType = "DATABASE_ERROR"
	// EngineErrorTypeEncryption covers key derivation and sealing failures
	EngineErrorTypeEncryption EngineErrorType = "ENCRYPTION_ERROR"
	// EngineErrorTypeCompression covers compression failures
	EngineErrorTypeCompression EngineErrorType = "COMPRESSION_ERROR"
	// EngineErrorTypeCorruption covers payload hash mismatches
	EngineErrorTypeCorruption EngineErrorType = "CORRUPTION_ERROR"
	// EngineErrorTypeTimeout covers exceeded duration budgets
	EngineErrorTypeTimeout EngineErrorType = "TIMEOUT_ERROR"
	// EngineErrorTypeNotFound covers missing archives
	EngineErrorTypeNotFound EngineErrorType = "NOT_FOUND_ERROR"
	// EngineErrorTypeConflict covers concurrent restore contention
	EngineErrorTypeConflict EngineErrorType = "CONFLICT_ERROR"
)

// NewEngineError creates a new EngineError
func NewEngineError(errorType EngineErrorType, message string, cause error) *EngineError {
	return &EngineError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors
func NewValidationError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeValidation, message, cause)
}

func NewStructureError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeStructure, message, cause)
}

func NewPolicyError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypePolicy, message, cause)
}

func NewStorageError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeStorage, message, cause)
}

func NewDatabaseError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeDatabase, message, cause)
}

func NewEncryptionError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeEncryption, message, cause)
}

func NewCompressionError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeCompression, message, cause)
}

func NewCorruptionError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeCorruption, message, cause)
}

func NewTimeoutError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeTimeout, message, cause)
}

func NewNotFoundError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *EngineError {
	return NewEngineError(EngineErrorTypeConflict, message, cause)
}

// ValidationIssue represents a single structural validation finding
type ValidationIssue struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationIssue) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationIssues represents a collection of validation findings
type ValidationIssues []ValidationIssue

// Error implements the error interface
func (e ValidationIssues) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a finding to the collection
func (e *ValidationIssues) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationIssue{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are findings
func (e ValidationIssues) HasErrors() bool {
	return len(e) > 0
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	if engineErr, ok := err.(*EngineError); ok {
		switch engineErr.Type {
		case EngineErrorTypeStorage, EngineErrorTypeDatabase, EngineErrorTypeTimeout:
			return true
		default:
			return false
		}
	}
	return false
}

// IsPermanent determines if an error is permanent and should not be retried
func IsPermanent(err error) bool {
	if engineErr, ok := err.(*EngineError); ok {
		switch engineErr.Type {
		case EngineErrorTypeValidation, EngineErrorTypeStructure,
			EngineErrorTypeCorruption, EngineErrorTypePolicy:
			return true
		default:
			return false
		}
	}
	return false
}
