// internal/common/errors/handler.go
package errors

import (
	"context"
	stderrors "errors"
	"time"
)

// Handler normalizes and logs pipeline errors in one place.
type Handler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// Normalize ensures we always have a StandardError. A context deadline maps
// to a provider timeout for the named provider; cancellation means the batch
// was canceled while this item was in flight.
func (h *Handler) Normalize(err error, provider string) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewProviderTimeoutError(provider)
	}
	if stderrors.Is(err, context.Canceled) {
		return NewBatchCanceledError()
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// LogItemFailure records a failed batch item with full error context.
func (h *Handler) LogItemFailure(batchID, itemID string, stage Stage, stdErr *StandardError) {
	h.logger.Error("Item failed", map[string]interface{}{
		"batchId":       batchID,
		"itemId":        itemID,
		"stage":         string(stage),
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}

// LogStaleServe records a refresh failure that was absorbed by serving the
// previous snapshot.
func (h *Handler) LogStaleServe(stdErr *StandardError) {
	h.logger.Warn("Serving stale reference snapshot", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
}
