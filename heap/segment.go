package heap

import (
	"github.com/EvheniyHlushko/GenerationalGC/config"
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/memory"
)

// Segment owns one contiguous unmanaged buffer for one generation,
// bump-allocated front to back. Gen0 carries no card table or brick
// index — minor GC always walks it linearly rather than via
// dirty-card scanning — and neither does a Region; Gen1, Gen2 and Loh
// do.
type Segment struct {
	buf      *memory.Buffer
	gen      Generation
	allocPtr uintptr

	cards  *CardTable
	bricks *BrickIndex
}

// NewSegment reserves a buffer of size bytes for generation gen and,
// for every managed generation but Gen0, attaches a card table and
// brick index sized from cfg. Region segments get neither: the
// collector never compacts a region or scans it for dirty cards —
// seeding reads only its external-root set.
func NewSegment(gen Generation, size uintptr, cfg config.HeapConfig) (*Segment, error) {
	buf, err := memory.NewBuffer(size)
	if err != nil {
		return nil, gcerr.OutOfMemory("newSegment", err.Error())
	}
	s := &Segment{buf: buf, gen: gen}
	if gen != GenGen0 && gen != GenRegion {
		s.cards = NewCardTable(size, cfg.CardSizeBytes)
		s.bricks = NewBrickIndex(size, cfg.BrickSizeBytes)
	}
	return s, nil
}

func (s *Segment) Base() uintptr          { return s.buf.Base() }
func (s *Segment) Size() uintptr          { return s.buf.Size() }
func (s *Segment) AllocPtr() uintptr      { return s.allocPtr }
func (s *Segment) Generation() Generation { return s.gen }
func (s *Segment) Cards() *CardTable      { return s.cards }
func (s *Segment) Bricks() *BrickIndex    { return s.bricks }
func (s *Segment) Buffer() *memory.Buffer { return s.buf }

// Contains reports whether addr falls within this segment's range.
func (s *Segment) Contains(addr uintptr) bool {
	base := s.Base()
	return addr >= base && addr < base+s.Size()
}

// TryAllocate bumps the segment's allocation cursor by n bytes
// (aligned up to pointer size) and returns the pre-advance,
// segment-relative offset. ok is false, with no side effect, if the
// segment doesn't have room.
func (s *Segment) TryAllocate(n uintptr) (off uintptr, ok bool) {
	n = memory.AlignUp(n, memory.PtrSize)
	if s.allocPtr+n > s.Size() {
		return 0, false
	}
	off = s.allocPtr
	s.allocPtr += n
	return off, true
}

// AllocatedBytes reports how many bytes of this segment are occupied.
func (s *Segment) AllocatedBytes() uintptr { return s.allocPtr }

// ResetNurseryLayout zeroes the buffer, rewinds the allocation cursor
// to 0, and clears the card table and brick index (where present).
// Called on Gen0 after a collection, and on a promotion target should
// it ever need to be re-laid-out.
func (s *Segment) ResetNurseryLayout() {
	s.buf.Zero(0, s.Size())
	s.allocPtr = 0
	if s.cards != nil {
		s.cards.ClearAll()
	}
	if s.bricks != nil {
		s.bricks.ClearAll()
	}
}

// Release returns the segment's buffer to the OS.
func (s *Segment) Release() error { return s.buf.Release() }
