package models

import (
	"time"

	"stock-intake/internal/common/errors"
)

// ImageInput is one receipt photo submitted to a batch.
type ImageInput struct {
	Ref      string `json:"ref"` // caller-supplied identifier, e.g. filename
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// ItemFailure records why one batch item produced no line items. Raw holds
// the provider response when the failure was a malformed extraction.
type ItemFailure struct {
	Stage   errors.Stage     `json:"stage"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Raw     string           `json:"raw,omitempty"`
}

// ItemResult is the terminal state of one batch slot: either line items or a
// failure, never both.
type ItemResult struct {
	ItemID   string               `json:"item_id"`
	ImageRef string               `json:"image_ref"`
	Index    int                  `json:"index"`
	Items    []ReconciledLineItem `json:"items,omitempty"`
	Failure  *ItemFailure         `json:"failure,omitempty"`
}

// Failed reports whether the item terminated with a failure.
func (r ItemResult) Failed() bool {
	return r.Failure != nil
}

// BatchSummary aggregates terminal states across one batch.
type BatchSummary struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	NeedsReview int `json:"needs_review"`
	LineItems   int `json:"line_items"`
}

// BatchResult is the outcome of one orchestrated batch. Results are indexed
// by submission order and always have exactly len(inputs) entries.
type BatchResult struct {
	BatchID  string       `json:"batch_id"`
	Results  []ItemResult `json:"results"`
	Summary  BatchSummary `json:"summary"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}
