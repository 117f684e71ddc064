package pipeline

import (
	"context"
	"time"

	"stock-intake/internal/common/database"
	"stock-intake/internal/models"
)

// ProgressSink receives batch lifecycle events. Sink failures never fail the
// batch; the orchestrator logs and moves on.
type ProgressSink interface {
	BatchStarted(ctx context.Context, batchID string, total int) error
	ItemFinished(ctx context.Context, batchID string, result models.ItemResult) error
	BatchFinished(ctx context.Context, batchID string, summary models.BatchSummary) error
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) BatchStarted(ctx context.Context, batchID string, total int) error { return nil }
func (NopSink) ItemFinished(ctx context.Context, batchID string, result models.ItemResult) error {
	return nil
}
func (NopSink) BatchFinished(ctx context.Context, batchID string, summary models.BatchSummary) error {
	return nil
}

// RedisTracker publishes batch progress to a Redis hash so callers can poll
// a running batch from outside the process.
type RedisTracker struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisTracker(client *database.RedisClient, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func batchKey(batchID string) string {
	return "intake:batch:" + batchID
}

func (t *RedisTracker) BatchStarted(ctx context.Context, batchID string, total int) error {
	key := batchKey(batchID)
	rdb := t.client.GetClient()
	if err := rdb.HSet(ctx, key,
		"status", "running",
		"total", total,
		"done", 0,
		"succeeded", 0,
		"failed", 0,
	).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, t.ttl).Err()
}

func (t *RedisTracker) ItemFinished(ctx context.Context, batchID string, result models.ItemResult) error {
	key := batchKey(batchID)
	itemStatus := "succeeded"
	if result.Failed() {
		itemStatus = string(result.Failure.Code)
	}

	pipe := t.client.GetClient().Pipeline()
	pipe.HIncrBy(ctx, key, "done", 1)
	if result.Failed() {
		pipe.HIncrBy(ctx, key, "failed", 1)
	} else {
		pipe.HIncrBy(ctx, key, "succeeded", 1)
	}
	pipe.HSet(ctx, key, "item:"+result.ItemID, itemStatus)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *RedisTracker) BatchFinished(ctx context.Context, batchID string, summary models.BatchSummary) error {
	key := batchKey(batchID)
	rdb := t.client.GetClient()
	if err := rdb.HSet(ctx, key,
		"status", "done",
		"needs_review", summary.NeedsReview,
		"line_items", summary.LineItems,
	).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, t.ttl).Err()
}

var (
	_ ProgressSink = NopSink{}
	_ ProgressSink = (*RedisTracker)(nil)
)
