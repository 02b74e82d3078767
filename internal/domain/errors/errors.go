package errors

import (
	"errors"
	"fmt"
)

// Error types for different failure domains
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeInternal           ErrorType = "internal"
	ErrorTypeExternal           ErrorType = "external"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeDataFetch          ErrorType = "data_fetch"
	ErrorTypeInsufficientSample ErrorType = "insufficient_sample"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeGroundTruthGap     ErrorType = "ground_truth_gap"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
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
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewConfigurationError marks a missing or invalid required parameter.
// Never retryable: no investigation is created when configuration is bad.
func NewConfigurationError(parameter, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConfiguration,
		Code:      "CONFIGURATION_ERROR",
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"parameter": parameter},
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConflict,
		Code:      "CONFLICT",
		Message:   message,
		Retryable: false,
	}
}

// NewInternalError marks a non-transient engine fault. Never retried:
// retry is reserved for transient store and external failures.
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: false,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeExternal,
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("%s service error: %s", service, message),
		Retryable: true,
		Details:   map[string]interface{}{"service": service},
	}
}

// NewDataFetchError marks a transient transaction store failure.
// Retryable with backoff up to the configured attempt bound.
func NewDataFetchError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeDataFetch,
		Code:      "DATA_FETCH_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// NewInsufficientSampleError marks a scoring batch too small to fit the
// anomaly model. Non-fatal: scoring falls back to heuristic-only.
func NewInsufficientSampleError(sampleCount, minimum int) *AppError {
	return &AppError{
		Type:      ErrorTypeInsufficientSample,
		Code:      "INSUFFICIENT_SAMPLE",
		Message:   fmt.Sprintf("batch has %d samples, anomaly model requires %d", sampleCount, minimum),
		Retryable: false,
		Details: map[string]interface{}{
			"sample_count": sampleCount,
			"minimum":      minimum,
		},
	}
}

// NewScoringTimeoutError marks an investigation that exceeded its wall-clock
// budget. Partial scores computed before the deadline are kept.
func NewScoringTimeoutError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeTimeout,
		Code:      "SCORING_TIMEOUT",
		Message:   message,
		Retryable: false,
	}
}

// NewGroundTruthGapError marks transactions whose ground-truth lookup
// returned null. They are excluded from the confusion matrix, never
// counted as true negatives.
func NewGroundTruthGapError(missingCount int) *AppError {
	return &AppError{
		Type:      ErrorTypeGroundTruthGap,
		Code:      "GROUND_TRUTH_GAP",
		Message:   fmt.Sprintf("ground truth unavailable for %d transactions", missingCount),
		Retryable: false,
		Details:   map[string]interface{}{"missing_count": missingCount},
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

// GetCode extracts the error code, or a generic code for foreign errors
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}
