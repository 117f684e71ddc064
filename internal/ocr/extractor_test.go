// internal/ocr/extractor_test.go
package ocr

import (
	"context"
	"errors"
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

type fakeProvider struct {
	calls int32
	text  string
	errs  []error // returned in order, nil-padded
}

func (f *fakeProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if int(n) <= len(f.errs) && f.errs[n-1] != nil {
		return "", f.errs[n-1]
	}
	return f.text, nil
}

func newTestExtractor(p VisionProvider) *Extractor {
	return NewExtractor(Config{
		MaxUploadBytes: 1024,
		Timeout:        time.Second,
		RatePerSecond:  1000,
	}, p, logger.NewNoOpLogger())
}

// ==========================
// Validation Tests
// ==========================

func TestExtract_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		image    []byte
		mimeType string
	}{
		{"empty image", nil, "image/jpeg"},
		{"unsupported mime", []byte{0x01}, "application/pdf"},
		{"webp not accepted", []byte{0x01}, "image/webp"},
		{"oversized image", make([]byte, 2048), "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			e := newTestExtractor(p)

			_, err := e.Extract(context.Background(), tt.image, tt.mimeType)

			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeImageRejected, apperrors.CodeOf(err))
			assert.Equal(t, int32(0), atomic.LoadInt32(&p.calls), "provider must not be called")
		})
	}
}

// ==========================
// Retry Behavior Tests
// ==========================

func TestExtract_RetriesOnceOnTransientFailure(t *testing.T) {
	p := &fakeProvider{
		text: "NAMA ASM: Budi",
		errs: []error{apperrors.NewProviderError("vision", errors.New("status 503"), true)},
	}
	e := newTestExtractor(p)

	text, err := e.Extract(context.Background(), []byte{0x01}, "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, "NAMA ASM: Budi", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestExtract_NoRetryOnPermanentFailure(t *testing.T) {
	p := &fakeProvider{
		errs: []error{apperrors.NewProviderError("vision", errors.New("status 400"), false)},
	}
	e := newTestExtractor(p)

	_, err := e.Extract(context.Background(), []byte{0x01}, "image/jpeg")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.CodeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestExtract_SecondFailureSurfaces(t *testing.T) {
	transient := apperrors.NewProviderError("vision", errors.New("status 503"), true)
	p := &fakeProvider{errs: []error{transient, transient}}
	e := newTestExtractor(p)

	_, err := e.Extract(context.Background(), []byte{0x01}, "image/jpeg")

	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestExtract_CanceledContextIsNotATimeout(t *testing.T) {
	p := &fakeProvider{text: "ignored"}
	e := newTestExtractor(p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, []byte{0x01}, "image/jpeg")

	require.Error(t, err)
	assert.NotEqual(t, apperrors.ErrCodeProviderTimeout, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_EmptyTextIsValid(t *testing.T) {
	p := &fakeProvider{text: ""}
	e := newTestExtractor(p)

	text, err := e.Extract(context.Background(), []byte{0x01}, "image/png")

	require.NoError(t, err)
	assert.Empty(t, text)
}

// ==========================
// HTTP Provider Tests
// ==========================

func TestHTTPProvider_RecognizeText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ocr", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[{"markdown":"NAMA ASM: Budi"},{"markdown":"TOKO: Maju Jaya"}]}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "test-key", "doc-ocr-1")
	text, err := p.RecognizeText(context.Background(), []byte{0x01}, "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, "NAMA ASM: Budi\n\nTOKO: Maju Jaya", text)
}

func TestHTTPProvider_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "test-key", "doc-ocr-1")
	_, err := p.RecognizeText(context.Background(), []byte{0x01}, "image/jpeg")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestHTTPProvider_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "bad-key", "doc-ocr-1")
	_, err := p.RecognizeText(context.Background(), []byte{0x01}, "image/jpeg")

	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}
