package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	apperrors "stock-intake/internal/common/errors"
	"stock-intake/internal/common/logger"
	"stock-intake/internal/common/metrics"
)

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// Config holds the extraction limits.
type Config struct {
	MaxUploadBytes int64
	Timeout        time.Duration
	RatePerSecond  float64
}

// Extractor validates images and runs them through the vision provider with
// rate limiting, a per-call deadline, and one retry on transient failures.
type Extractor struct {
	cfg      Config
	provider VisionProvider
	limiter  *rate.Limiter
	logger   logger.Logger
}

func NewExtractor(cfg Config, provider VisionProvider, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Extractor{
		cfg:      cfg,
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:   log,
	}
}

// Extract returns the recognized text for one image. Empty text is a valid
// result; the photo simply contained nothing readable.
func (e *Extractor) Extract(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", apperrors.NewImageRejectedError("empty image payload")
	}
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return "", apperrors.NewImageRejectedError(fmt.Sprintf("unsupported mime type %q", mimeType))
	}
	if e.cfg.MaxUploadBytes > 0 && int64(len(image)) > e.cfg.MaxUploadBytes {
		return "", apperrors.NewImageRejectedError(
			fmt.Sprintf("image size %d exceeds limit %d", len(image), e.cfg.MaxUploadBytes))
	}

	if err := e.limiter.Wait(ctx); err != nil {
		// The limiter fails either because the deadline cannot be met or
		// because the context was canceled outright; only the former is a
		// provider timeout.
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		return "", apperrors.NewProviderTimeoutError("vision")
	}

	start := time.Now()
	text, err := e.recognizeOnce(ctx, image, mimeType)
	if err != nil && apperrors.IsRetryable(err) {
		metrics.ProviderRetries.WithLabelValues("vision").Inc()
		e.logger.Warn("Vision call failed, retrying once", map[string]interface{}{
			"error": err.Error(),
		})
		text, err = e.recognizeOnce(ctx, image, mimeType)
	}
	metrics.StageDuration.WithLabelValues(string(apperrors.StageOCR)).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}

	e.logger.Debug("Text extracted", map[string]interface{}{
		"bytes": len(image),
		"chars": len(text),
	})
	return text, nil
}

func (e *Extractor) recognizeOnce(ctx context.Context, image []byte, mimeType string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	text, err := e.provider.RecognizeText(callCtx, image, mimeType)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && apperrors.CodeOf(err) == "" {
			return "", apperrors.NewProviderTimeoutError("vision")
		}
		return "", err
	}
	return text, nil
}
