// internal/fields/extractor_test.go
package fields

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-intake/internal/common/errors"
	"stock-intake/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeChatProvider struct {
	calls     int32
	responses []string // returned in order; last one repeats
	errs      []error  // returned in order, nil-padded
	lastReq   CompletionRequest
}

func (f *fakeChatProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.lastReq = req
	if int(n) <= len(f.errs) && f.errs[n-1] != nil {
		return "", f.errs[n-1]
	}
	idx := int(n) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func newTestExtractor(p ChatProvider) *Extractor {
	return NewExtractor(Config{
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     time.Second,
	}, p, logger.NewNoOpLogger())
}

const validArray = `[{"nama_asm": "Budi Santoso", "nama_toko": "Toko Maju", "nama_produk": "Vit C 30's", "stock_awal": 10, "stock_akhir": 4, "stock_terjual": 6}]`

// ==========================
// Extraction Tests
// ==========================

func TestExtract_ParsesBareArray(t *testing.T) {
	provider := &fakeChatProvider{responses: []string{validArray}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "some receipt text")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Budi Santoso", items[0].ASMName)
	assert.Equal(t, "Toko Maju", items[0].StoreName)
	assert.Equal(t, "Vit C 30's", items[0].ProductName)
	require.NotNil(t, items[0].StockSold)
	assert.Equal(t, 6, *items[0].StockSold)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
}

func TestExtract_EmptyTextYieldsNoItems(t *testing.T) {
	provider := &fakeChatProvider{responses: []string{validArray}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "   \n ")

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(0), atomic.LoadInt32(&provider.calls), "provider should not be called for empty text")
}

func TestExtract_StripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validArray + "\n```"
	provider := &fakeChatProvider{responses: []string{fenced}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls), "fenced but valid JSON should not trigger a retry")
}

func TestExtract_AcceptsObjectWrappedArray(t *testing.T) {
	wrapped := `{"items": ` + validArray + `}`
	provider := &fakeChatProvider{responses: []string{wrapped}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestExtract_CoercesStringNumbers(t *testing.T) {
	// "1.150" is the Indonesian thousands style, not a decimal.
	response := `[{"nama_asm": "Budi", "nama_toko": "Toko A", "nama_produk": "Vit C", "stock_awal": "1,200", "stock_akhir": "1.150", "stock_terjual": "50"}]`
	provider := &fakeChatProvider{responses: []string{response}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].StockStart)
	assert.Equal(t, 1200, *items[0].StockStart)
	require.NotNil(t, items[0].StockEnd)
	assert.Equal(t, 1150, *items[0].StockEnd)
	require.NotNil(t, items[0].StockSold)
	assert.Equal(t, 50, *items[0].StockSold)
}

func TestExtract_DerivesStockSoldFromStartAndEnd(t *testing.T) {
	response := `[{"nama_asm": "Budi", "nama_toko": "Toko A", "nama_produk": "Vit C", "stock_awal": 10, "stock_akhir": 3, "stock_terjual": null}]`
	provider := &fakeChatProvider{responses: []string{response}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].StockSold)
	assert.Equal(t, 7, *items[0].StockSold)
}

func TestExtract_DoesNotDeriveNegativeStockSold(t *testing.T) {
	response := `[{"nama_asm": "Budi", "nama_toko": "Toko A", "nama_produk": "Vit C", "stock_awal": 3, "stock_akhir": 10, "stock_terjual": null}]`
	provider := &fakeChatProvider{responses: []string{response}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].StockSold, "negative difference must not be written back")
}

func TestExtract_KeepsJunkNumbersAsNil(t *testing.T) {
	// "3-4" is a range; guessing either bound would fabricate data.
	response := `[{"nama_asm": "Budi", "nama_toko": "Toko A", "nama_produk": "Vit C", "stock_awal": "banyak", "stock_akhir": "3-4", "stock_terjual": 2}]`
	provider := &fakeChatProvider{responses: []string{response}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].StockStart)
	assert.Nil(t, items[0].StockEnd)
}

// ==========================
// Retry and Failure Tests
// ==========================

func TestExtract_RetriesOnceWithStrictInstruction(t *testing.T) {
	provider := &fakeChatProvider{responses: []string{"sorry, I cannot help with that", validArray}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.calls))
	assert.Contains(t, provider.lastReq.Prompt, "ONLY a raw JSON array")
}

func TestExtract_MalformedAfterRetryFails(t *testing.T) {
	provider := &fakeChatProvider{responses: []string{"not json", "still not json"}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.Error(t, err)
	assert.Nil(t, items)
	assert.Equal(t, apperrors.ErrCodeExtractionMalformed, apperrors.CodeOf(err))
	assert.Equal(t, "still not json", apperrors.RawResponseOf(err), "raw response must be preserved for diagnosis")
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.calls))
}

func TestExtract_TransientProviderFailureRetried(t *testing.T) {
	transient := apperrors.NewProviderError("chat", assert.AnError, true)
	provider := &fakeChatProvider{
		responses: []string{validArray},
		errs:      []error{transient, nil},
	}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.calls))
}

func TestExtract_PermanentProviderFailureSurfaces(t *testing.T) {
	permanent := apperrors.NewProviderError("chat", assert.AnError, false)
	provider := &fakeChatProvider{
		responses: []string{validArray},
		errs:      []error{permanent},
	}
	extractor := newTestExtractor(provider)

	_, err := extractor.Extract(context.Background(), "receipt")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.CodeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls), "permanent failures must not be retried")
}

func TestExtract_MissingNameBecomesEmptyString(t *testing.T) {
	// Absent name fields are kept as empty strings so the line still reaches
	// reconciliation and gets flagged there, instead of being dropped here.
	response := `[{"nama_asm": "Budi", "nama_toko": "Toko A", "stock_awal": 10}]`
	provider := &fakeChatProvider{responses: []string{response}}
	extractor := newTestExtractor(provider)

	items, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].ProductName)
	assert.Equal(t, "Budi", items[0].ASMName)
}

func TestExtract_NonObjectArrayElementFails(t *testing.T) {
	provider := &fakeChatProvider{responses: []string{`["just a string"]`, `[42]`}}
	extractor := newTestExtractor(provider)

	_, err := extractor.Extract(context.Background(), "receipt")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExtractionMalformed, apperrors.CodeOf(err))
}

func TestExtract_PassesModelParameters(t *testing.T) {
	provider := &fakeChatProvider{responses: []string{validArray}}
	extractor := NewExtractor(Config{Temperature: 0.1, MaxTokens: 1500, Timeout: time.Second}, provider, logger.NewNoOpLogger())

	_, err := extractor.Extract(context.Background(), "receipt")

	require.NoError(t, err)
	assert.InDelta(t, 0.1, provider.lastReq.Temperature, 0.001)
	assert.Equal(t, 1500, provider.lastReq.MaxTokens)
	assert.Contains(t, provider.lastReq.Prompt, "receipt")
}

// ==========================
// HTTP Provider Tests
// ==========================

func TestHTTPProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		messages := body["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "[]"}}]}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "test-key", "test-model")
	response, err := provider.Complete(context.Background(), CompletionRequest{
		System: "sys", Prompt: "user", Temperature: 0.1, MaxTokens: 100,
	})

	require.NoError(t, err)
	assert.Equal(t, "[]", response)
}

func TestHTTPProvider_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "key", "model")
	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p"})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestHTTPProvider_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "key", "model")
	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p"})

	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestHTTPProvider_EmptyChoicesFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "key", "model")
	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p"})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.CodeOf(err))
}
