package storage

import (
	"container/list"
	"fmt"

	"go.uber.org/zap"
)

// Capacity is the number of page frames the buffer pool caches in memory.
const Capacity = 100

// frame is one resident page slot: its bytes, identity, and the
// bookkeeping the eviction policy and pin discipline need.
type frame struct {
	page     Page
	pid      PageID
	dirty    bool
	pinCount int
	lruElem  *list.Element // element in BufferPool.lru; nil while pinned-out of LRU tracking is never the case here, lru always holds every resident frame
}

// Handle is a scoped, pinned borrow of a resident page. The caller reads
// and writes Handle.Page().Data directly and must call BufferPool.Unpin
// exactly once per Fetch/NewPage that produced it. The buffer pool never
// writes through a handle itself — mutation and the resulting dirty flag
// are entirely the caller's responsibility.
type Handle struct {
	pool *BufferPool
	fr   *frame
}

// PageID returns the identity of the page behind this handle.
func (h Handle) PageID() PageID { return h.fr.pid }

// Page returns the mutable page bytes. Valid only until Unpin.
func (h Handle) Page() *Page { return &h.fr.page }

// BufferPool caches up to Capacity pages in memory, evicting the least
// recently used unpinned frame (writing it back first if dirty) when a
// fetch or allocation needs a free frame.
type BufferPool struct {
	disk     *DiskManager
	capacity int
	log      *zap.SugaredLogger

	frames    []*frame
	byPageID  map[PageID]*frame
	lru       *list.List // front = most recently used, back = least recently used
	hits      int64
	misses    int64
	evictions int64
}

// NewBufferPool creates a buffer pool of capacity frames backed by disk.
func NewBufferPool(disk *DiskManager, capacity int, log *zap.SugaredLogger) *BufferPool {
	return &BufferPool{
		disk:     disk,
		capacity: capacity,
		log:      log,
		byPageID: make(map[PageID]*frame, capacity),
		lru:      list.New(),
	}
}

// Stats returns cumulative hit/miss/eviction counters, exposed by
// internal/telemetry as Prometheus gauges.
func (bp *BufferPool) Stats() (hits, misses, evictions int64) {
	return bp.hits, bp.misses, bp.evictions
}

// Fetch pins and returns the page identified by pid, reading it from disk
// on a cache miss. Fails with ErrPoolExhausted if every resident frame is
// pinned and the pool is at capacity.
func (bp *BufferPool) Fetch(pid PageID) (Handle, error) {
	if fr, ok := bp.byPageID[pid]; ok {
		fr.pinCount++
		bp.lru.MoveToFront(fr.lruElem)
		bp.hits++
		if bp.log != nil {
			bp.log.Debugw("buffer pool hit", "page_id", pid, "pin_count", fr.pinCount)
		}
		return Handle{pool: bp, fr: fr}, nil
	}

	bp.misses++
	fr, err := bp.acquireFrame()
	if err != nil {
		return Handle{}, err
	}

	if err := bp.disk.ReadPage(pid, &fr.page); err != nil {
		return Handle{}, err
	}
	fr.pid = pid
	fr.dirty = false
	fr.pinCount = 1
	bp.byPageID[pid] = fr
	fr.lruElem = bp.lru.PushFront(fr)

	if bp.log != nil {
		bp.log.Debugw("buffer pool miss, loaded from disk", "page_id", pid)
	}
	return Handle{pool: bp, fr: fr}, nil
}

// NewPage allocates a fresh page on disk, secures a frame for it the same
// way Fetch does, zero-initializes it as an empty slotted page, and
// returns it pinned and dirty.
func (bp *BufferPool) NewPage() (Handle, error) {
	pid := bp.disk.AllocatePage()

	fr, err := bp.acquireFrame()
	if err != nil {
		return Handle{}, err
	}

	fr.page = Page{}
	NewSlotted(&fr.page).Init()
	fr.pid = pid
	fr.dirty = true
	fr.pinCount = 1
	bp.byPageID[pid] = fr
	fr.lruElem = bp.lru.PushFront(fr)

	if bp.log != nil {
		bp.log.Debugw("allocated new page", "page_id", pid)
	}
	return Handle{pool: bp, fr: fr}, nil
}

// acquireFrame returns a frame ready to hold a new page's contents: one
// from the free pool if capacity hasn't been reached yet, otherwise an
// LRU-evicted unpinned frame (written back first if dirty).
func (bp *BufferPool) acquireFrame() (*frame, error) {
	if len(bp.frames) < bp.capacity {
		fr := &frame{}
		bp.frames = append(bp.frames, fr)
		return fr, nil
	}

	for e := bp.lru.Back(); e != nil; e = e.Prev() {
		fr := e.Value.(*frame)
		if fr.pinCount > 0 {
			continue
		}
		if err := bp.evict(fr); err != nil {
			return nil, err
		}
		return fr, nil
	}

	return nil, fmt.Errorf("%w", ErrPoolExhausted)
}

func (bp *BufferPool) evict(fr *frame) error {
	if fr.dirty {
		if err := bp.disk.WritePage(fr.pid, &fr.page); err != nil {
			return err
		}
		fr.dirty = false
	}
	delete(bp.byPageID, fr.pid)
	bp.lru.Remove(fr.lruElem)
	fr.lruElem = nil
	bp.evictions++
	if bp.log != nil {
		bp.log.Debugw("evicted page", "page_id", fr.pid)
	}
	return nil
}

// Unpin releases one pin on pid and ORs dirty into the frame's dirty
// flag. It is undefined (and panics) to unpin a page that is not
// currently pinned — that indicates a bug in the caller, not user input.
func (bp *BufferPool) Unpin(pid PageID, dirty bool) {
	fr, ok := bp.byPageID[pid]
	if !ok || fr.pinCount == 0 {
		panic(fmt.Sprintf("storage: unpin of page %d with no outstanding pin", pid))
	}
	fr.pinCount--
	if dirty {
		fr.dirty = true
	}
}

// FlushPage writes pid to disk if resident and dirty, then clears dirty.
func (bp *BufferPool) FlushPage(pid PageID) error {
	fr, ok := bp.byPageID[pid]
	if !ok || !fr.dirty {
		return nil
	}
	if err := bp.disk.WritePage(pid, &fr.page); err != nil {
		return err
	}
	fr.dirty = false
	return nil
}

// FlushAll writes every dirty resident frame to disk, then fsyncs the
// data file. This is the durability checkpoint of spec section 4.3.
func (bp *BufferPool) FlushAll() error {
	for pid, fr := range bp.byPageID {
		if !fr.dirty {
			continue
		}
		if err := bp.disk.WritePage(pid, &fr.page); err != nil {
			return err
		}
		fr.dirty = false
	}
	if err := bp.disk.Flush(); err != nil {
		return err
	}
	if bp.log != nil {
		bp.log.Debugw("flushed buffer pool", "resident_frames", len(bp.byPageID))
	}
	return nil
}
