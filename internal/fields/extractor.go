package fields

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "stock-intake/internal/common/errors"
	"stock-intake/internal/common/logger"
	"stock-intake/internal/common/metrics"
	"stock-intake/internal/models"
)

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ChatProvider runs a completion and returns the raw response text.
type ChatProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Config holds the extraction model parameters.
type Config struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Extractor turns recognized receipt text into raw line items. The model is
// instructed to extract only; a malformed response gets exactly one retry
// with a stricter instruction before failing.
type Extractor struct {
	cfg      Config
	provider ChatProvider
	logger   logger.Logger
}

func NewExtractor(cfg Config, provider ChatProvider, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Extractor{cfg: cfg, provider: provider, logger: log}
}

const systemInstruction = "You are a precise data extraction assistant. " +
	"Extract every stock movement line from OCR text and respond with valid JSON arrays only."

const strictRetryInstruction = "\n\nYour previous answer was not valid JSON. " +
	"Respond with ONLY a raw JSON array. No markdown, no commentary, no wrapper object."

// Extract parses rawText into line items. Empty text yields zero items and
// no error.
func (e *Extractor) Extract(ctx context.Context, rawText string) ([]models.RawLineItem, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(string(apperrors.StageFields)).Observe(time.Since(start).Seconds())
	}()

	prompt := buildPrompt(rawText)

	response, err := e.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	items, parseErr := e.parse(response)
	if parseErr != nil {
		metrics.ProviderRetries.WithLabelValues("chat").Inc()
		e.logger.Warn("Model response malformed, retrying with strict instruction", map[string]interface{}{
			"error": parseErr.Error(),
		})

		response, err = e.complete(ctx, prompt+strictRetryInstruction)
		if err != nil {
			return nil, err
		}
		items, parseErr = e.parse(response)
		if parseErr != nil {
			return nil, apperrors.NewExtractionMalformedError(parseErr.Error(), response)
		}
	}

	e.logger.Debug("Line items extracted", map[string]interface{}{
		"count": len(items),
	})
	return items, nil
}

// complete runs one model call with a deadline; transient provider failures
// get a single retry.
func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	req := CompletionRequest{
		System:      systemInstruction,
		Prompt:      prompt,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	response, err := e.provider.Complete(callCtx, req)
	if err != nil && apperrors.IsRetryable(err) {
		metrics.ProviderRetries.WithLabelValues("chat").Inc()
		retryCtx, retryCancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer retryCancel()
		response, err = e.provider.Complete(retryCtx, req)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewProviderTimeoutError("chat")
		}
		return "", err
	}
	return response, nil
}

func (e *Extractor) parse(response string) ([]models.RawLineItem, error) {
	cleaned := stripFences(response)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	rawItems, ok := parseItemArray(cleaned)
	if !ok {
		return nil, fmt.Errorf("response is not a JSON array of objects")
	}

	normalized := make([]map[string]interface{}, 0, len(rawItems))
	for _, item := range rawItems {
		normalized = append(normalized, map[string]interface{}{
			"nama_asm":      stringOrEmpty(item["nama_asm"]),
			"nama_toko":     stringOrEmpty(item["nama_toko"]),
			"nama_produk":   stringOrEmpty(item["nama_produk"]),
			"stock_awal":    intOrNil(coerceInt(item["stock_awal"])),
			"stock_akhir":   intOrNil(coerceInt(item["stock_akhir"])),
			"stock_terjual": intOrNil(coerceInt(item["stock_terjual"])),
		})
	}

	schemaLoader := gojsonschema.NewGoLoader(lineItemSchema)
	documentLoader := gojsonschema.NewGoLoader(normalized)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("schema violations: %s", strings.Join(details, "; "))
	}

	items := make([]models.RawLineItem, 0, len(normalized))
	for _, m := range normalized {
		item := models.RawLineItem{
			ASMName:     m["nama_asm"].(string),
			StoreName:   m["nama_toko"].(string),
			ProductName: m["nama_produk"].(string),
			StockStart:  asIntPtr(m["stock_awal"]),
			StockEnd:    asIntPtr(m["stock_akhir"]),
			StockSold:   asIntPtr(m["stock_terjual"]),
		}
		deriveStockSold(&item)
		items = append(items, item)
	}
	return items, nil
}

// deriveStockSold fills a missing sold count from start-end when both are
// present and the difference is non-negative. Contradictory values are left
// as extracted for the reviewer.
func deriveStockSold(item *models.RawLineItem) {
	if item.StockSold != nil || item.StockStart == nil || item.StockEnd == nil {
		return
	}
	diff := *item.StockStart - *item.StockEnd
	if diff >= 0 {
		item.StockSold = &diff
	}
}

func intOrNil(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func asIntPtr(v interface{}) *int {
	if n, ok := v.(int); ok {
		return &n
	}
	return nil
}
