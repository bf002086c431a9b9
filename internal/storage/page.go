package storage

import "encoding/binary"

// PageID identifies a fixed-size page within the data file. 0 is reserved
// to mean "no page" / "end of chain"; the first allocated page is 1.
type PageID uint32

// InvalidPageID is the reserved "no page" sentinel.
const InvalidPageID PageID = 0

const (
	// PageSize is the fixed size, in bytes, of every page in the data file.
	PageSize = 4096

	// HeaderSize is the size of the slotted-page header: slot_count (u16),
	// free_space_ptr (u16), next_page_id (u32).
	HeaderSize = 8

	// SlotSize is the size of one slot directory entry: offset (u16),
	// length (u16).
	SlotSize = 4

	slotCountOffset     = 0
	freeSpacePtrOffset  = 2
	nextPageIDOffset    = 4
)

// Page is a fixed 4096-byte buffer holding one page's raw on-disk bytes,
// laid out as a slotted page (see Slotted below).
type Page struct {
	Data [PageSize]byte
}

// Slot is a (offset, length) pair within a page. length == 0 marks a
// tombstone: the slot exists in the directory but no live tuple occupies
// it. The current engine never deletes, so tombstones are a reserved
// encoding rather than something produced in practice.
type Slot struct {
	Offset uint16
	Length uint16
}

// Slotted is a view over a Page's bytes that implements the slotted-page
// operations of the on-disk format. It holds no state of its own; every
// method reads or writes directly through the wrapped Page.
type Slotted struct {
	Page *Page
}

// NewSlotted wraps page for slotted-page access.
func NewSlotted(page *Page) Slotted {
	return Slotted{Page: page}
}

// Init resets page to a fresh, empty slotted page.
func (s Slotted) Init() {
	s.setSlotCount(0)
	s.setFreeSpacePtr(PageSize)
	s.SetNext(InvalidPageID)
}

func (s Slotted) SlotCount() uint16 {
	return binary.LittleEndian.Uint16(s.Page.Data[slotCountOffset:])
}

func (s Slotted) setSlotCount(n uint16) {
	binary.LittleEndian.PutUint16(s.Page.Data[slotCountOffset:], n)
}

func (s Slotted) freeSpacePtr() uint16 {
	return binary.LittleEndian.Uint16(s.Page.Data[freeSpacePtrOffset:])
}

func (s Slotted) setFreeSpacePtr(v uint16) {
	binary.LittleEndian.PutUint16(s.Page.Data[freeSpacePtrOffset:], v)
}

// Next returns the chain pointer to the next page, or InvalidPageID at
// the end of the chain.
func (s Slotted) Next() PageID {
	return PageID(binary.LittleEndian.Uint32(s.Page.Data[nextPageIDOffset:]))
}

// SetNext sets the chain pointer to the next page.
func (s Slotted) SetNext(pid PageID) {
	binary.LittleEndian.PutUint32(s.Page.Data[nextPageIDOffset:], uint32(pid))
}

func (s Slotted) slotsEnd() uint16 {
	return HeaderSize + s.SlotCount()*SlotSize
}

// FreeSpace returns the number of bytes available between the end of the
// slot directory and the start of the tuple payload area.
func (s Slotted) FreeSpace() uint16 {
	dataStart := s.freeSpacePtr()
	slotsEnd := s.slotsEnd()
	if dataStart <= slotsEnd {
		return 0
	}
	return dataStart - slotsEnd
}

// CanFit reports whether a payload of payloadLen bytes, plus its new slot
// entry, fits in the page's current free space.
func (s Slotted) CanFit(payloadLen int) bool {
	return uint32(payloadLen)+SlotSize <= uint32(s.FreeSpace())
}

func (s Slotted) slotAt(i uint16) Slot {
	off := HeaderSize + i*SlotSize
	return Slot{
		Offset: binary.LittleEndian.Uint16(s.Page.Data[off:]),
		Length: binary.LittleEndian.Uint16(s.Page.Data[off+2:]),
	}
}

func (s Slotted) setSlotAt(i uint16, slot Slot) {
	off := HeaderSize + i*SlotSize
	binary.LittleEndian.PutUint16(s.Page.Data[off:], slot.Offset)
	binary.LittleEndian.PutUint16(s.Page.Data[off+2:], slot.Length)
}

// Insert appends payload as a new tuple, returning its slot index.
// Callers must check CanFit first; Insert panics if the page has no room,
// since that would indicate an invariant violation by the caller.
func (s Slotted) Insert(payload []byte) uint16 {
	if !s.CanFit(len(payload)) {
		panic("storage: Insert called without checking CanFit")
	}
	newOffset := s.freeSpacePtr() - uint16(len(payload))
	copy(s.Page.Data[newOffset:], payload)

	slotIndex := s.SlotCount()
	s.setSlotAt(slotIndex, Slot{Offset: newOffset, Length: uint16(len(payload))})
	s.setSlotCount(slotIndex + 1)
	s.setFreeSpacePtr(newOffset)
	return slotIndex
}

// Get returns the payload at slotIndex, or ok=false if the index is out
// of range or the slot is a tombstone.
func (s Slotted) Get(slotIndex uint16) (payload []byte, ok bool) {
	if slotIndex >= s.SlotCount() {
		return nil, false
	}
	slot := s.slotAt(slotIndex)
	if slot.Length == 0 {
		return nil, false
	}
	return s.Page.Data[slot.Offset : slot.Offset+slot.Length], true
}

// Iter calls fn for every live (non-tombstone) slot in ascending slot
// index order, stopping early if fn returns false.
func (s Slotted) Iter(fn func(slotIndex uint16, payload []byte) bool) {
	n := s.SlotCount()
	for i := uint16(0); i < n; i++ {
		payload, ok := s.Get(i)
		if !ok {
			continue
		}
		if !fn(i, payload) {
			return
		}
	}
}
