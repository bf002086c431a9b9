package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlottedInitEmpty(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	require.Equal(t, uint16(0), s.SlotCount())
	require.Equal(t, InvalidPageID, s.Next())
	require.Equal(t, uint16(PageSize-HeaderSize), s.FreeSpace())
}

func TestSlottedInsertAndGet(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	idx := s.Insert([]byte("hello"))
	require.Equal(t, uint16(0), idx)

	payload, ok := s.Get(idx)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), payload)
}

func TestSlottedSlotIndicesAreStable(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	i0 := s.Insert([]byte("first"))
	i1 := s.Insert([]byte("second"))
	i2 := s.Insert([]byte("third"))

	require.Equal(t, uint16(0), i0)
	require.Equal(t, uint16(1), i1)
	require.Equal(t, uint16(2), i2)

	p0, _ := s.Get(i0)
	p1, _ := s.Get(i1)
	p2, _ := s.Get(i2)
	require.Equal(t, []byte("first"), p0)
	require.Equal(t, []byte("second"), p1)
	require.Equal(t, []byte("third"), p2)
}

func TestSlottedGetOutOfRange(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	_, ok := s.Get(0)
	require.False(t, ok)
}

func TestSlottedCanFitRespectsFreeSpace(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	require.True(t, s.CanFit(100))
	require.False(t, s.CanFit(PageSize))
}

func TestSlottedInsertPanicsWhenFull(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	require.Panics(t, func() {
		s.Insert(make([]byte, PageSize))
	})
}

func TestSlottedIterVisitsAllLiveSlots(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	s.Insert([]byte("a"))
	s.Insert([]byte("b"))
	s.Insert([]byte("c"))

	var seen []string
	s.Iter(func(_ uint16, payload []byte) bool {
		seen = append(seen, string(payload))
		return true
	})
	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestSlottedIterStopsEarly(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	s.Insert([]byte("a"))
	s.Insert([]byte("b"))
	s.Insert([]byte("c"))

	var seen []string
	s.Iter(func(_ uint16, payload []byte) bool {
		seen = append(seen, string(payload))
		return len(seen) < 2
	})
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestSlottedNextRoundTrip(t *testing.T) {
	var p Page
	s := NewSlotted(&p)
	s.Init()

	s.SetNext(PageID(42))
	require.Equal(t, PageID(42), s.Next())
}
