package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "stock-intake/internal/common/errors"
	"stock-intake/internal/common/logger"
	"stock-intake/internal/common/metrics"
)

// Cache serves an immutable reference snapshot with a TTL. Readers always get
// a consistent snapshot; refreshes swap the pointer atomically. Concurrent
// callers on an expired cache trigger exactly one backend load.
type Cache struct {
	source Source
	ttl    time.Duration
	logger logger.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	// test seam
	now func() time.Time
}

func NewCache(source Source, ttl time.Duration, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// Snapshot returns the current snapshot, refreshing it when expired.
//
// Failure handling: if no snapshot has ever been loaded, the load error is
// returned as REFERENCE_UNAVAILABLE and the snapshot is nil. If a previous
// snapshot exists, it is returned together with a REFRESH_FAILED error so the
// caller can log the degradation and continue on stale data.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && c.now().Sub(snap.FetchedAt) < c.ttl {
		return snap, nil
	}
	return c.refresh(ctx)
}

// Invalidate forces the next Snapshot call to hit the backend.
func (c *Cache) Invalidate() {
	if snap := c.current.Load(); snap != nil {
		expired := *snap
		expired.FetchedAt = time.Time{}
		c.current.CompareAndSwap(snap, &expired)
	}
}

func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		// Another caller may have refreshed while we waited on the group.
		if snap := c.current.Load(); snap != nil && c.now().Sub(snap.FetchedAt) < c.ttl {
			return snap, nil
		}

		ref, err := c.source.Load(ctx)
		if err != nil {
			metrics.CacheRefreshes.WithLabelValues("failure").Inc()
			return nil, err
		}

		snap := NewSnapshot(ref, c.now())
		c.current.Store(snap)
		metrics.CacheRefreshes.WithLabelValues("success").Inc()
		c.logger.Info("Reference snapshot refreshed", map[string]interface{}{
			"areas":    len(snap.Areas),
			"asms":     len(snap.ASMs),
			"stores":   len(snap.Stores),
			"products": len(snap.Products),
			"issues":   len(snap.Issues),
		})
		for _, issue := range snap.Issues {
			c.logger.Warn("Reference integrity issue", map[string]interface{}{
				"entity":  issue.Entity,
				"name":    issue.Name,
				"problem": issue.Problem,
			})
		}
		return snap, nil
	})

	if err != nil {
		if stale := c.current.Load(); stale != nil {
			refreshErr := apperrors.NewRefreshFailedError(err)
			c.logger.Warn("Reference refresh failed, serving stale snapshot", map[string]interface{}{
				"fetchedAt": stale.FetchedAt,
				"error":     err.Error(),
			})
			return stale, refreshErr
		}
		return nil, apperrors.NewReferenceUnavailableError(err)
	}

	return v.(*Snapshot), nil
}
