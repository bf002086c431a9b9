package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, *DiskManager) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	dm, err := OpenDiskManager(dbPath, newTestLogger(t))
	require.NoError(t, err)
	return NewBufferPool(dm, capacity, newTestLogger(t)), dm
}

func TestBufferPoolNewPageIsPinnedAndDirty(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	defer dm.Close()

	h, err := pool.NewPage()
	require.NoError(t, err)
	require.NotEqual(t, InvalidPageID, h.PageID())

	slotted := NewSlotted(h.Page())
	require.Equal(t, uint16(0), slotted.SlotCount())
	pool.Unpin(h.PageID(), false)
}

func TestBufferPoolFetchCacheHit(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	defer dm.Close()

	h, err := pool.NewPage()
	require.NoError(t, err)
	pid := h.PageID()
	pool.Unpin(pid, true)

	h2, err := pool.Fetch(pid)
	require.NoError(t, err)
	require.Equal(t, pid, h2.PageID())
	pool.Unpin(pid, false)

	hits, misses, _ := pool.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(0), misses)
}

func TestBufferPoolEvictsLRUAndWritesBackDirty(t *testing.T) {
	pool, dm := newTestPool(t, 2)
	defer dm.Close()

	h1, err := pool.NewPage()
	require.NoError(t, err)
	pid1 := h1.PageID()
	copy(h1.Page().Data[:], "page one contents")
	pool.Unpin(pid1, true)

	h2, err := pool.NewPage()
	require.NoError(t, err)
	pid2 := h2.PageID()
	pool.Unpin(pid2, true)

	// Pool is now full at capacity 2 with both frames unpinned; allocating a
	// third page must evict pid1 (least recently used) and write it back.
	h3, err := pool.NewPage()
	require.NoError(t, err)
	pid3 := h3.PageID()
	pool.Unpin(pid3, true)

	_, _, evictions := pool.Stats()
	require.Equal(t, int64(1), evictions)

	var readBack Page
	require.NoError(t, dm.ReadPage(pid1, &readBack))
	require.Equal(t, "page one contents", string(readBack.Data[:len("page one contents")]))

	_ = pid2
}

func TestBufferPoolExhaustedWhenAllPinned(t *testing.T) {
	pool, dm := newTestPool(t, 2)
	defer dm.Close()

	h1, err := pool.NewPage()
	require.NoError(t, err)
	h2, err := pool.NewPage()
	require.NoError(t, err)

	_, err = pool.NewPage()
	require.ErrorIs(t, err, ErrPoolExhausted)

	pool.Unpin(h1.PageID(), false)
	pool.Unpin(h2.PageID(), false)
}

func TestBufferPoolUnpinWithoutPinPanics(t *testing.T) {
	pool, dm := newTestPool(t, 2)
	defer dm.Close()

	require.Panics(t, func() {
		pool.Unpin(PageID(999), false)
	})
}

func TestBufferPoolFlushAllClearsDirtyAndSyncs(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	defer dm.Close()

	h, err := pool.NewPage()
	require.NoError(t, err)
	pid := h.PageID()
	copy(h.Page().Data[:], "flush me")
	pool.Unpin(pid, true)

	require.NoError(t, pool.FlushAll())

	var readBack Page
	require.NoError(t, dm.ReadPage(pid, &readBack))
	require.Equal(t, "flush me", string(readBack.Data[:len("flush me")]))
}
