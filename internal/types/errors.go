package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. All packages use these constants instead of
// hardcoded strings so failure handling can branch on category.
const (
	// Validation
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationWindow       ErrorCode = "validation_invalid_window"
	ErrCodeValidationSchema       ErrorCode = "validation_schema_mismatch"

	// Not Found
	ErrCodeNotFoundTrigger    ErrorCode = "not_found_trigger"
	ErrCodeNotFoundPreference ErrorCode = "not_found_preference"
	ErrCodeNotFoundResult     ErrorCode = "not_found_result"

	// Conflict
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"
	ErrCodeConflictEnrolled   ErrorCode = "conflict_already_enrolled"

	// Internal
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalSchedule   ErrorCode = "internal_schedule_computation"

	// Upstream (generation gateway, queues)
	ErrCodeUpstreamGeneration  ErrorCode = "upstream_generation_unavailable"
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// Retryable reports whether errors carrying this code represent transient
// external failures that the caller (or the host job runner) should retry
// with backoff. Schema mismatches from the generation gateway are retryable
// by contract: a fresh call may produce a well-formed response.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeUpstreamGeneration, ErrCodeUpstreamQueue, ErrCodeUpstreamRateLimited, ErrCodeValidationSchema:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error code to the HTTP status returned by the gateway.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidationMissingField, ErrCodeValidationWindow, ErrCodeValidationSchema:
		return 400
	case ErrCodeNotFoundTrigger, ErrCodeNotFoundPreference, ErrCodeNotFoundResult:
		return 404
	case ErrCodeConflictConcurrent, ErrCodeConflictEnrolled:
		return 409
	case ErrCodeUpstreamRateLimited:
		return 503
	case ErrCodeUpstreamGeneration, ErrCodeUpstreamQueue:
		return 502
	default:
		return 500
	}
}

// AppError is the standard application error type. All domain errors are
// expressed as AppError to enable consistent logging, retry classification,
// and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether this error is transient.
func (e *AppError) Retryable() bool {
	return e.Code.Retryable()
}

// HTTPStatus returns the HTTP status for this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRetryable reports whether err (or anything in its chain) is an AppError
// carrying a retryable code. Non-AppError failures are treated as retryable:
// unknown transport errors should be retried rather than silently dropped.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return true
}

// CodeOf extracts the ErrorCode from an error chain, or
// ErrCodeInternalUnexpected when no AppError is present.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
