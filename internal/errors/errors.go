// Package errors carries the error taxonomy shared by the data store,
// the backup engine and the recovery tooling: typed application errors,
// MySQL-aware classification, retry with backoff and signal-driven
// shutdown.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes application errors
type ErrorType string

const (
	// ErrorTypeConnection covers data store connectivity failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSQL covers statement execution failures
	ErrorTypeSQL ErrorType = "sql"
	// ErrorTypeStorage covers archive and filesystem failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation covers rejected input and missing objects
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePermission covers denied access
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeTimeout covers deadline overruns
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption covers user or signal cancellation
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown is the fallback for everything else
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError is a typed error with classification context. Recoverable
// errors are safe to retry; everything else fails the operation.
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
	UserMessage string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRecoverable reports whether a retry can succeed
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// GetUserMessage returns the operator-facing message, falling back to
// the internal one.
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext attaches a key/value pair to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a non-recoverable typed error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverableError creates a typed error that retry handlers may retry
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	appErr := NewAppError(errorType, message, cause)
	appErr.Recoverable = true
	return appErr
}

// IsRecoverableError reports whether err carries a recoverable AppError
func IsRecoverableError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRecoverable()
	}
	return false
}

// GetErrorType extracts the error type, ErrorTypeUnknown for plain errors
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// FormatUserError renders an error for the CLI surface
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.GetUserMessage()
	}
	return "An unexpected error occurred. Please check the logs for more details."
}

// WrapError wraps err with a higher-level message, preserving its
// classification. Plain errors are classified first.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return NewAppError(appErr.Type, message, err)
	}

	classified := NewErrorClassifier().ClassifyError(err)
	classified.Message = message
	return classified
}
