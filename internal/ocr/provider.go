// Package ocr turns receipt photos into raw recognized text.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "stock-intake/internal/common/errors"
	commonhttp "stock-intake/internal/common/http"
)

// VisionProvider recognizes text in an image. Implementations must honor ctx
// cancellation and return the recognized text verbatim.
type VisionProvider interface {
	RecognizeText(ctx context.Context, image []byte, mimeType string) (string, error)
}

// HTTPProvider calls a document-OCR HTTP API that accepts a base64 data URL
// and returns per-page markdown.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *commonhttp.Client
}

func NewHTTPProvider(baseURL, apiKey, model string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		// Timeouts are driven by the caller's context.
		client: commonhttp.NewClient(0),
	}
}

func (p *HTTPProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	requestBody := map[string]interface{}{
		"model": p.model,
		"document": map[string]interface{}{
			"type":      "image_url",
			"image_url": dataURL,
		},
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequest("POST", p.baseURL+"/v1/ocr", bytes.NewBuffer(body))
	if err != nil {
		return "", apperrors.NewProviderError("vision", err, false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewProviderTimeoutError("vision")
		}
		return "", apperrors.NewProviderError("vision", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		return "", apperrors.NewProviderError("vision", err, resp.StatusCode >= 500)
	}

	var apiResponse struct {
		Pages []struct {
			Markdown string `json:"markdown"`
		} `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", apperrors.NewProviderError("vision", fmt.Errorf("decode error: %v", err), false)
	}

	parts := make([]string, 0, len(apiResponse.Pages))
	for _, page := range apiResponse.Pages {
		if page.Markdown != "" {
			parts = append(parts, page.Markdown)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

var _ VisionProvider = (*HTTPProvider)(nil)
