package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// RowId locates a stored tuple: the page holding it and the slot index
// within that page.
type RowId struct {
	PageID PageID
	Slot   uint16
}

// TableHeap is the append-only, page-chained storage for one table's
// rows. Pages are linked from the root toward the tail via each page's
// next_page_id;
// insertion always targets the chain's last page, allocating and
// linking a new one when that page has no room.
type TableHeap struct {
	pool    *BufferPool
	rootPID PageID
	tailPID PageID // cached last page in the chain; 0 until first touched
	log     *zap.SugaredLogger
}

// NewTableHeap wraps an existing root page id as a TableHeap.
func NewTableHeap(pool *BufferPool, rootPID PageID, log *zap.SugaredLogger) *TableHeap {
	return &TableHeap{pool: pool, rootPID: rootPID, log: log}
}

// CreateTableHeap allocates the first page of a brand-new table heap and
// returns it ready for inserts.
func CreateTableHeap(pool *BufferPool, log *zap.SugaredLogger) (*TableHeap, error) {
	h, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	pid := h.PageID()
	pool.Unpin(pid, true)
	return &TableHeap{pool: pool, rootPID: pid, tailPID: pid, log: log}, nil
}

// RootPageID returns the first page of the chain, as stored in the catalog.
func (t *TableHeap) RootPageID() PageID { return t.rootPID }

// Insert appends encoded to the heap's tail page, allocating and linking
// a new tail page if the current one has no room. Returns ErrTupleTooLarge
// if the row could never fit on any page regardless of its occupancy.
func (t *TableHeap) Insert(encoded []byte) (RowId, error) {
	if len(encoded) > MaxTupleSize {
		return RowId{}, fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrTupleTooLarge, len(encoded), MaxTupleSize)
	}

	tail, err := t.tailPage()
	if err != nil {
		return RowId{}, err
	}

	for {
		handle, err := t.pool.Fetch(tail)
		if err != nil {
			return RowId{}, err
		}
		slotted := NewSlotted(handle.Page())

		if slotted.CanFit(len(encoded)) {
			slotIndex := slotted.Insert(encoded)
			t.pool.Unpin(tail, true)
			t.tailPID = tail
			return RowId{PageID: tail, Slot: slotIndex}, nil
		}

		// No room: allocate a new tail page and link the current one to it.
		next, err := t.pool.NewPage()
		if err != nil {
			t.pool.Unpin(tail, false)
			return RowId{}, err
		}
		nextPID := next.PageID()
		t.pool.Unpin(nextPID, true)

		slotted.SetNext(nextPID)
		t.pool.Unpin(tail, true)

		if t.log != nil {
			t.log.Debugw("table heap extended", "from_page", tail, "to_page", nextPID)
		}
		tail = nextPID
	}
}

// tailPage returns the last page in the chain, walking from the root the
// first time it's needed and caching the result thereafter.
func (t *TableHeap) tailPage() (PageID, error) {
	if t.tailPID != InvalidPageID {
		return t.tailPID, nil
	}

	pid := t.rootPID
	for {
		handle, err := t.pool.Fetch(pid)
		if err != nil {
			return InvalidPageID, err
		}
		next := NewSlotted(handle.Page()).Next()
		t.pool.Unpin(pid, false)
		if next == InvalidPageID {
			t.tailPID = pid
			return pid, nil
		}
		pid = next
	}
}

// Scan calls fn for every live tuple in the heap, in page-chain then
// slot-index order, stopping early if fn returns false or an error.
func (t *TableHeap) Scan(fn func(id RowId, payload []byte) (bool, error)) error {
	pid := t.rootPID
	for pid != InvalidPageID {
		handle, err := t.pool.Fetch(pid)
		if err != nil {
			return err
		}
		slotted := NewSlotted(handle.Page())

		var stop bool
		var fnErr error
		slotted.Iter(func(slotIndex uint16, payload []byte) bool {
			cont, err := fn(RowId{PageID: pid, Slot: slotIndex}, payload)
			if err != nil {
				fnErr = err
				return false
			}
			if !cont {
				stop = true
				return false
			}
			return true
		})
		next := slotted.Next()
		t.pool.Unpin(pid, false)

		if fnErr != nil {
			return fnErr
		}
		if stop {
			return nil
		}
		pid = next
	}
	return nil
}
