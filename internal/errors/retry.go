package errors

import (
	"context"
	"math"
	"time"
)

// RetryConfig tunes the backoff behavior of a RetryHandler
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the backoff used for store connections
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryHandler retries operations whose failures classify as recoverable
type RetryHandler struct {
	config     RetryConfig
	classifier *ErrorClassifier
}

// NewRetryHandler creates a retry handler with the given configuration
func NewRetryHandler(config RetryConfig) *RetryHandler {
	return &RetryHandler{
		config:     config,
		classifier: NewErrorClassifier(),
	}
}

// NewDefaultRetryHandler creates a retry handler with the default backoff
func NewDefaultRetryHandler() *RetryHandler {
	return NewRetryHandler(DefaultRetryConfig())
}

// Retry runs operation until it succeeds, fails unrecoverably, exhausts
// the attempt budget, or the context is canceled.
func (r *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return NewAppError(ErrorTypeInterruption, "Operation canceled", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		appErr := r.classifier.ClassifyError(err)
		if !appErr.IsRecoverable() {
			return appErr
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return NewAppError(ErrorTypeInterruption, "Operation canceled during retry", ctx.Err())
		case <-time.After(r.delay(attempt)):
		}
	}

	return r.classifier.ClassifyError(lastErr).
		WithContext("attempts", r.config.MaxAttempts)
}

// delay computes the exponential backoff for one attempt, capped at MaxDelay
func (r *RetryHandler) delay(attempt int) time.Duration {
	backoff := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if capped := float64(r.config.MaxDelay); backoff > capped {
		backoff = capped
	}
	return time.Duration(backoff)
}
