package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError_MySQLCodes(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name        string
		code        uint16
		wantType    ErrorType
		recoverable bool
	}{
		{"access denied", 1045, ErrorTypePermission, false},
		{"unknown database", 1049, ErrorTypeValidation, false},
		{"missing table", 1146, ErrorTypeValidation, false},
		{"duplicate entry", 1062, ErrorTypeValidation, false},
		{"lock wait timeout", 1205, ErrorTypeSQL, true},
		{"deadlock", 1213, ErrorTypeSQL, true},
		{"server unreachable", 2003, ErrorTypeConnection, true},
		{"server gone away", 2006, ErrorTypeConnection, true},
		{"unmapped server error", 1064, ErrorTypeSQL, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &mysql.MySQLError{Number: tt.code, Message: tt.name}
			appErr := classifier.ClassifyError(err)

			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.recoverable, appErr.IsRecoverable())
			assert.Equal(t, tt.code, appErr.Context["mysql_error_code"])
		})
	}
}

func TestClassifyError_SQLSentinels(t *testing.T) {
	classifier := NewErrorClassifier()

	assert.Equal(t, ErrorTypeValidation, classifier.ClassifyError(sql.ErrNoRows).Type)
	assert.Equal(t, ErrorTypeSQL, classifier.ClassifyError(sql.ErrTxDone).Type)

	connDone := classifier.ClassifyError(sql.ErrConnDone)
	assert.Equal(t, ErrorTypeConnection, connDone.Type)
	assert.True(t, connDone.IsRecoverable())
}

func TestClassifyError_Context(t *testing.T) {
	classifier := NewErrorClassifier()

	timeout := classifier.ClassifyError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, timeout.Type)
	assert.True(t, timeout.IsRecoverable())

	canceled := classifier.ClassifyError(context.Canceled)
	assert.Equal(t, ErrorTypeInterruption, canceled.Type)
	assert.False(t, canceled.IsRecoverable())
}

func TestClassifyError_PassesThroughAppError(t *testing.T) {
	classifier := NewErrorClassifier()
	original := NewAppError(ErrorTypeStorage, "archive missing", nil)

	wrapped := fmt.Errorf("outer: %w", original)
	assert.Same(t, original, classifier.ClassifyError(wrapped))
}

func TestClassifyError_UnknownFallback(t *testing.T) {
	classifier := NewErrorClassifier()
	appErr := classifier.ClassifyError(errors.New("mystery"))

	assert.Equal(t, ErrorTypeUnknown, appErr.Type)
	assert.False(t, appErr.IsRecoverable())
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	appErr := NewAppError(ErrorTypeStorage, "write failed", cause)

	assert.Contains(t, appErr.Error(), "storage")
	assert.Contains(t, appErr.Error(), "disk full")
	assert.ErrorIs(t, appErr, cause)
}

func TestRetry_StopsOnUnrecoverableError(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return &mysql.MySQLError{Number: 1045, Message: "access denied"}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrorTypePermission, GetErrorType(err))
}

func TestRetry_RetriesRecoverableError(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &mysql.MySQLError{Number: 2003, Message: "unreachable"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustedAttempts(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return &mysql.MySQLError{Number: 2003, Message: "unreachable"}
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Context["attempts"])
}

func TestRetry_CanceledContext(t *testing.T) {
	handler := NewDefaultRetryHandler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Retry(ctx, func() error {
		t.Fatal("operation must not run after cancellation")
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, ErrorTypeInterruption, GetErrorType(err))
}

func TestIsRecoverableError(t *testing.T) {
	assert.True(t, IsRecoverableError(NewRecoverableError(ErrorTypeConnection, "lost", nil)))
	assert.False(t, IsRecoverableError(NewAppError(ErrorTypeValidation, "bad input", nil)))
	assert.False(t, IsRecoverableError(errors.New("plain")))
}

func TestFormatUserError(t *testing.T) {
	appErr := NewAppError(ErrorTypePermission, "internal detail", nil)
	appErr.UserMessage = "Access denied. Check credentials."
	assert.Equal(t, "Access denied. Check credentials.", FormatUserError(appErr))

	assert.Equal(t, "", FormatUserError(nil))
	assert.Contains(t, FormatUserError(errors.New("boom")), "unexpected error")
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))

	inner := NewAppError(ErrorTypeStorage, "low level", nil)
	wrapped := WrapError(inner, "higher level")
	assert.Equal(t, ErrorTypeStorage, GetErrorType(wrapped))
	assert.Contains(t, wrapped.Error(), "higher level")
}
