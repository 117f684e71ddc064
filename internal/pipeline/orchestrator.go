// Package pipeline orchestrates receipt photos through text recognition,
// field extraction and catalog reconciliation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-intake/internal/catalog"
	apperrors "stock-intake/internal/common/errors"
	"stock-intake/internal/common/logger"
	"stock-intake/internal/common/metrics"
	"stock-intake/internal/common/observability"
	"stock-intake/internal/models"
)

// TextExtractor recognizes text on one receipt photo.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (string, error)
}

// FieldExtractor turns recognized text into raw line items.
type FieldExtractor interface {
	Extract(ctx context.Context, rawText string) ([]models.RawLineItem, error)
}

// ItemReconciler resolves one raw line item against a catalog snapshot.
type ItemReconciler interface {
	Reconcile(item models.RawLineItem, snap *catalog.Snapshot) models.ReconciledLineItem
}

// SnapshotProvider yields the reference snapshot a batch is pinned to.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// Config tunes batch execution.
type Config struct {
	// Concurrency bounds in-flight items; recognition calls dominate the
	// per-item cost so this is effectively the OCR parallelism.
	Concurrency int
	// ItemTimeout bounds one item end to end.
	ItemTimeout time.Duration
}

func defaultConfig(cfg Config) Config {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 2 * time.Minute
	}
	return cfg
}

// Orchestrator runs batches of receipt photos through the three stages.
// Every batch is pinned to a single snapshot so all its items reconcile
// against the same reference data.
type Orchestrator struct {
	cfg        Config
	text       TextExtractor
	fields     FieldExtractor
	reconciler ItemReconciler
	snapshots  SnapshotProvider
	progress   ProgressSink
	errHandler *apperrors.Handler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewOrchestrator(
	cfg Config,
	text TextExtractor,
	fields FieldExtractor,
	reconciler ItemReconciler,
	snapshots SnapshotProvider,
	progress ProgressSink,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if progress == nil {
		progress = NopSink{}
	}
	return &Orchestrator{
		cfg:        defaultConfig(cfg),
		text:       text,
		fields:     fields,
		reconciler: reconciler,
		snapshots:  snapshots,
		progress:   progress,
		errHandler: apperrors.NewHandler(log),
		obs:        obs,
		logger:     log,
	}
}

// Run processes inputs and returns one result per input, in submission
// order. Item failures are isolated; only an unavailable reference snapshot
// fails the whole batch. A canceled context marks undispatched items
// BATCH_CANCELED and returns what completed.
func (o *Orchestrator) Run(ctx context.Context, inputs []models.ImageInput) (*models.BatchResult, error) {
	batchID := uuid.NewString()
	started := time.Now().UTC()

	snap, err := o.snapshots.Snapshot(ctx)
	if snap == nil {
		return nil, err
	}
	if err != nil {
		// Stale snapshot: usable, but the refresh behind it failed.
		o.errHandler.LogStaleServe(o.errHandler.Normalize(err, "reference"))
	}

	o.logger.Info("Batch started", map[string]interface{}{
		"batchId":     batchID,
		"items":       len(inputs),
		"concurrency": o.cfg.Concurrency,
	})
	o.notify(o.progress.BatchStarted(ctx, batchID, len(inputs)))

	results := make([]models.ItemResult, len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < o.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = o.canceledResult(idx, inputs[idx])
				} else {
					results[idx] = o.processItem(ctx, batchID, idx, inputs[idx], snap)
				}
				o.notify(o.progress.ItemFinished(ctx, batchID, results[idx]))
			}
		}()
	}
	for idx := range inputs {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	summary := summarize(results)
	o.notify(o.progress.BatchFinished(ctx, batchID, summary))
	if o.obs != nil {
		o.obs.RecordBatchProcessed(ctx, len(inputs))
	}

	o.logger.Info("Batch finished", map[string]interface{}{
		"batchId":     batchID,
		"succeeded":   summary.Succeeded,
		"failed":      summary.Failed,
		"needsReview": summary.NeedsReview,
	})

	return &models.BatchResult{
		BatchID:  batchID,
		Results:  results,
		Summary:  summary,
		Started:  started,
		Finished: time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) processItem(ctx context.Context, batchID string, idx int, input models.ImageInput, snap *catalog.Snapshot) models.ItemResult {
	itemID := uuid.NewString()
	itemStart := time.Now()
	metrics.ItemsInFlight.Inc()
	defer metrics.ItemsInFlight.Dec()

	itemCtx, cancel := context.WithTimeout(ctx, o.cfg.ItemTimeout)
	defer cancel()

	rawText, err := o.text.Extract(itemCtx, input.Data, input.MimeType)
	if err != nil {
		return o.failedResult(ctx, batchID, itemID, idx, input, apperrors.StageOCR, err)
	}

	rawItems, err := o.fields.Extract(itemCtx, rawText)
	if err != nil {
		return o.failedResult(ctx, batchID, itemID, idx, input, apperrors.StageFields, err)
	}

	reconciled := make([]models.ReconciledLineItem, 0, len(rawItems))
	for _, raw := range rawItems {
		reconciled = append(reconciled, o.reconciler.Reconcile(raw, snap))
	}

	metrics.ItemsProcessed.WithLabelValues("succeeded").Inc()
	if o.obs != nil {
		o.obs.RecordItemProcessed(ctx, "succeeded")
		o.obs.RecordItemDuration(ctx, time.Since(itemStart), "succeeded")
	}
	return models.ItemResult{
		ItemID:   itemID,
		ImageRef: input.Ref,
		Index:    idx,
		Items:    reconciled,
	}
}

func (o *Orchestrator) failedResult(ctx context.Context, batchID, itemID string, idx int, input models.ImageInput, stage apperrors.Stage, err error) models.ItemResult {
	provider := "vision"
	if stage == apperrors.StageFields {
		provider = "chat"
	}
	stdErr := o.errHandler.Normalize(err, provider)
	o.errHandler.LogItemFailure(batchID, itemID, stage, stdErr)
	metrics.ItemsProcessed.WithLabelValues("failed").Inc()
	metrics.ItemsFailed.WithLabelValues(string(stage), string(stdErr.Code)).Inc()
	if o.obs != nil {
		o.obs.RecordItemProcessed(ctx, "failed")
	}
	return models.ItemResult{
		ItemID:   itemID,
		ImageRef: input.Ref,
		Index:    idx,
		Failure: &models.ItemFailure{
			Stage:   stage,
			Code:    stdErr.Code,
			Message: stdErr.Message,
			Raw:     apperrors.RawResponseOf(stdErr),
		},
	}
}

func (o *Orchestrator) canceledResult(idx int, input models.ImageInput) models.ItemResult {
	stdErr := apperrors.NewBatchCanceledError()
	metrics.ItemsProcessed.WithLabelValues("canceled").Inc()
	return models.ItemResult{
		ItemID:   uuid.NewString(),
		ImageRef: input.Ref,
		Index:    idx,
		Failure: &models.ItemFailure{
			Stage:   apperrors.StageOCR,
			Code:    stdErr.Code,
			Message: stdErr.Message,
		},
	}
}

func (o *Orchestrator) notify(err error) {
	if err != nil {
		o.logger.Warn("Progress sink error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func summarize(results []models.ItemResult) models.BatchSummary {
	summary := models.BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Failed() {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		summary.LineItems += len(r.Items)
		for _, item := range r.Items {
			if item.NeedsReview {
				summary.NeedsReview++
			}
		}
	}
	return summary
}
