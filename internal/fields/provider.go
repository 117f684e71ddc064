package fields

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "stock-intake/internal/common/errors"
	commonhttp "stock-intake/internal/common/http"
)

// HTTPProvider calls an OpenAI-style chat completions endpoint.
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

func (p *HTTPProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	requestBody := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.Prompt},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}

	body, _ := json.Marshal(requestBody)
	httpReq, err := http.NewRequest("POST", p.baseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", apperrors.NewProviderError("chat", err, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.DoWithContext(ctx, httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewProviderTimeoutError("chat")
		}
		return "", apperrors.NewProviderError("chat", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		return "", apperrors.NewProviderError("chat", err, resp.StatusCode >= 500)
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", apperrors.NewProviderError("chat", fmt.Errorf("decode error: %v", err), false)
	}
	if len(apiResponse.Choices) == 0 {
		return "", apperrors.NewProviderError("chat", fmt.Errorf("no choices in response"), false)
	}

	return apiResponse.Choices[0].Message.Content, nil
}

var _ ChatProvider = (*HTTPProvider)(nil)
