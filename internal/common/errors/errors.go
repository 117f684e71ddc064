// Package errors provides standardized error handling for the intake pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeReferenceUnavailable ErrorCode = "REFERENCE_UNAVAILABLE"
	ErrCodeRefreshFailed        ErrorCode = "REFRESH_FAILED"

	ErrCodeImageRejected ErrorCode = "IMAGE_REJECTED"

	ErrCodeProviderTimeout ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderError   ErrorCode = "PROVIDER_ERROR"

	ErrCodeExtractionMalformed ErrorCode = "EXTRACTION_MALFORMED"

	ErrCodeBatchCanceled ErrorCode = "BATCH_CANCELED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Stage identifies the pipeline stage that produced a failure.
type Stage string

const (
	StageOCR       Stage = "ocr"
	StageFields    Stage = "fields"
	StageReconcile Stage = "reconcile"
)

// ==========================
// 2. Error Constructors
// ==========================

// NewReferenceUnavailableError creates a retryable reference load error. The
// reference snapshot has never been populated, so nothing can be reconciled.
func NewReferenceUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReferenceUnavailable,
		Message:   "Reference data unavailable and no snapshot loaded",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRefreshFailedError creates a retryable refresh warning. A stale snapshot
// is still being served alongside this error.
func NewRefreshFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRefreshFailed,
		Message:   "Reference refresh failed, serving stale snapshot",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewImageRejectedError creates a non-retryable input validation error.
func NewImageRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeImageRejected,
		Message:   "Image rejected before processing",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable provider timeout error.
func NewProviderTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   fmt.Sprintf("Provider '%s' timeout", provider),
		Details:   "call exceeded the configured deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError creates a provider failure error. Server-side failures
// (5xx, transport) are retryable; client-side rejections are not.
func NewProviderError(provider string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderError,
		Message:   fmt.Sprintf("Provider '%s' error", provider),
		Details:   err.Error(),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionMalformedError creates a non-retryable extraction error. The
// raw model response is preserved in metadata for diagnostics.
func NewExtractionMalformedError(details, rawResponse string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionMalformed,
		Message:   "Model output could not be parsed into line items",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"rawResponse": rawResponse},
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchCanceledError creates a non-retryable cancellation marker for items
// that were undispatched or still in flight when the batch was canceled.
func NewBatchCanceledError() *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchCanceled,
		Message:   "Batch canceled before this item completed",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or empty string when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// RawResponseOf extracts a preserved raw provider response, if any.
func RawResponseOf(err error) string {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) && stdErr.Metadata != nil {
		if raw, ok := stdErr.Metadata["rawResponse"].(string); ok {
			return raw
		}
	}
	return ""
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "REFERENCE") || strings.Contains(codeStr, "REFRESH"):
		return "REFERENCE"
	case strings.Contains(codeStr, "PROVIDER"):
		return "PROVIDER"
	case strings.Contains(codeStr, "IMAGE") || strings.Contains(codeStr, "EXTRACTION"):
		return "INPUT"
	default:
		return "OTHER"
	}
}
