// internal/catalog/cache_test.go
package catalog

import (
	"context"
	"errors"
	"sync"
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

type fakeSource struct {
	mu    sync.Mutex
	loads int32
	ref   *Reference
	err   error
	delay time.Duration
}

func (f *fakeSource) Load(ctx context.Context) (*Reference, error) {
	atomic.AddInt32(&f.loads, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.ref, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func testReference() *Reference {
	return &Reference{
		Areas: []Area{
			{AreaCode: "JKT1", AreaName: "Jakarta Pusat", Region: "Jawa"},
			{AreaCode: "BDG1", AreaName: "Bandung", Region: "Jawa"},
		},
		ASMs: []ASM{
			{Name: "Budi Santoso", AreaCode: "JKT1", AreaName: "Jakarta Pusat"},
		},
		Stores: []Store{
			{StoreID: "S001", StoreName: "Toko Maju Jaya", AreaCode: "JKT1", City: "Jakarta"},
			{StoreID: "S002", StoreName: "Toko Berkah", AreaCode: "BDG1", City: "Bandung"},
		},
		Products: []Product{
			{ProductName: "Paracetamol 500mg", SKUCode: "SKU-001", Category: "Pharma"},
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestCache_ServesWithinTTL(t *testing.T) {
	src := &fakeSource{ref: testReference()}
	cache := NewCache(src, 5*time.Minute, logger.NewNoOpLogger())

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.loads))
}

func TestCache_RefreshesAfterTTL(t *testing.T) {
	src := &fakeSource{ref: testReference()}
	cache := NewCache(src, 5*time.Minute, logger.NewNoOpLogger())

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)

	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.loads))
}

func TestCache_NeverLoaded_ReferenceUnavailable(t *testing.T) {
	src := &fakeSource{err: errors.New("backend down")}
	cache := NewCache(src, time.Minute, logger.NewNoOpLogger())

	snap, err := cache.Snapshot(context.Background())

	assert.Nil(t, snap)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeReferenceUnavailable, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestCache_StaleServeOnRefreshFailure(t *testing.T) {
	src := &fakeSource{ref: testReference()}
	cache := NewCache(src, 5*time.Minute, logger.NewNoOpLogger())

	now := time.Now()
	cache.now = func() time.Time { return now }

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	src.setErr(errors.New("backend down"))
	now = now.Add(10 * time.Minute)

	snap, err := cache.Snapshot(context.Background())

	require.NotNil(t, snap)
	assert.Same(t, first, snap)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRefreshFailed, apperrors.CodeOf(err))
}

func TestCache_Invalidate_ForcesRefresh(t *testing.T) {
	src := &fakeSource{ref: testReference()}
	cache := NewCache(src, time.Hour, logger.NewNoOpLogger())

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.loads))
}

// ==========================
// Concurrency Tests
// ==========================

func TestCache_ConcurrentCold_SingleLoad(t *testing.T) {
	src := &fakeSource{ref: testReference(), delay: 50 * time.Millisecond}
	cache := NewCache(src, time.Hour, logger.NewNoOpLogger())

	const callers = 10
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = cache.Snapshot(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, snaps[i])
		assert.Same(t, snaps[0], snaps[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.loads))
}

// ==========================
// Snapshot Integrity Tests
// ==========================

func TestSnapshot_Lookups(t *testing.T) {
	snap := NewSnapshot(testReference(), time.Now())

	m, ok := snap.ASMByName("Budi Santoso")
	require.True(t, ok)
	assert.Equal(t, "JKT1", m.AreaCode)

	st, ok := snap.StoreByName("Toko Berkah")
	require.True(t, ok)
	assert.Equal(t, "BDG1", st.AreaCode)

	inArea := snap.StoresInArea("JKT1")
	require.Len(t, inArea, 1)
	assert.Equal(t, "S001", inArea[0].StoreID)

	_, ok = snap.ProductByName("No Such Product")
	assert.False(t, ok)
}

func TestSnapshot_IntegrityIssues(t *testing.T) {
	ref := testReference()
	ref.ASMs = append(ref.ASMs, ASM{Name: "Siti Rahma", AreaCode: "ZZZ9"})
	ref.Stores = append(ref.Stores, Store{StoreID: "S003", StoreName: "Toko Maju Jaya", AreaCode: "JKT1"})

	snap := NewSnapshot(ref, time.Now())

	require.Len(t, snap.Issues, 2)
	assert.Equal(t, "asm", snap.Issues[0].Entity)
	assert.Contains(t, snap.Issues[0].Problem, "ZZZ9")
	assert.Equal(t, "store", snap.Issues[1].Entity)
	assert.Equal(t, "duplicate name", snap.Issues[1].Problem)

	// The first occurrence wins the name lookup.
	st, ok := snap.StoreByName("Toko Maju Jaya")
	require.True(t, ok)
	assert.Equal(t, "S001", st.StoreID)
}
