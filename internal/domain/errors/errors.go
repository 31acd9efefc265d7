package errors

import (
	"errors"
	"fmt"
)

// Error types for different failure classes
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeBusiness         ErrorType = "business"
	ErrorTypeInternal         ErrorType = "internal"
	ErrorTypeExternal         ErrorType = "external"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypeInsufficientData ErrorType = "insufficient_data"
	ErrorTypeIntegrity        ErrorType = "integrity"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "EXTERNAL_SERVICE_ERROR",
		Message:    fmt.Sprintf("%s service error: %s", service, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

// NewInsufficientDataError marks an unmet detector precondition (sample
// count, variance). Detectors recover from it locally as an empty result; it
// never crosses the cycle boundary.
func NewInsufficientDataError(domain, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientData,
		Code:       "INSUFFICIENT_DATA",
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"domain": domain},
	}
}

// NewSourceUnavailableError marks a failed snapshot fetch for one domain.
// The cycle downgrades it to insufficient data for that domain and continues.
func NewSourceUnavailableError(domain string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "SOURCE_UNAVAILABLE",
		Message:    fmt.Sprintf("metric source unavailable for domain %s", domain),
		Cause:      cause,
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"domain": domain},
	}
}

// NewSinkWriteError is a cycle-level failure: detected anomalies were not
// persisted, which must surface to the trigger's caller.
func NewSinkWriteError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "SINK_WRITE_FAILED",
		Message:    "failed to persist anomaly events",
		Cause:      cause,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewNotificationError(eventType string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "NOTIFICATION_FAILED",
		Message:    fmt.Sprintf("failed to dispatch notification for %s", eventType),
		Cause:      cause,
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"event_type": eventType},
	}
}

func NewLedgerIntegrityError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeIntegrity,
		Code:       "LEDGER_INTEGRITY_VIOLATION",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
