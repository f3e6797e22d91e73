package heap

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/memory"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// EnsureTLH guarantees that m's TLH has at least needed bytes
// available in Gen0, reserving a fresh slab if not. If Gen0 has no
// room for a new slab, onOutOfSpace runs once (typically a local
// minor GC) and the reservation is retried exactly once.
func (h *Heap) EnsureTLH(m *Mutator, needed uintptr, onOutOfSpace func() error) error {
	needed = memory.AlignUp(needed, memory.PtrSize)
	tlh := &m.tlh
	if tlh.boundTo(h.gen0) && tlh.remaining() >= needed {
		return nil
	}
	if err := h.reserveSlab(tlh, needed); err == nil {
		return nil
	}
	if onOutOfSpace == nil {
		return gcerr.OutOfMemory("ensureTlh", "gen0 exhausted")
	}
	h.log.Debug("gen0 exhausted, reclaiming before retry", "needed", needed)
	if err := onOutOfSpace(); err != nil {
		return err
	}
	if err := h.reserveSlab(tlh, needed); err != nil {
		h.log.Warn("gen0 still exhausted after reclaim", "needed", needed)
		return gcerr.OutOfMemory("ensureTlh", "gen0 exhausted after gc")
	}
	h.log.Debug("gen0 reclaim freed enough room, retry succeeded", "needed", needed)
	return nil
}

func (h *Heap) reserveSlab(tlh *TLH, needed uintptr) error {
	slabSize := h.cfg.TLHSlabBytes
	if needed > slabSize {
		slabSize = needed
	}
	off, ok := h.gen0.TryAllocate(slabSize)
	if !ok {
		return gcerr.OutOfMemory("reserveSlab", "gen0 full")
	}
	base := h.gen0.Base() + off
	tlh.segment = h.gen0
	tlh.slabStart = base
	tlh.slabCursor = base
	tlh.slabLimit = base + slabSize
	return nil
}

// AllocateGen0 bumps m's TLH cursor by n bytes, writes the object
// header, and returns the object's absolute address. The caller must
// have already called EnsureTLH with at least n bytes.
func (h *Heap) AllocateGen0(m *Mutator, n uintptr, typeID uint64) uintptr {
	tlh := &m.tlh
	addr := tlh.slabCursor
	tlh.slabCursor += memory.AlignUp(n, memory.PtrSize)
	off := addr - h.gen0.Base()
	h.gen0.buf.WriteHeader(off, typeID)
	return addr
}

// Alloc allocates t on the heap: only Class kinds allocate on the
// heap; objects at or above the large-object threshold (or explicitly
// forced to Loh) go to Loh regardless of size; Gen1/Gen2 forcing
// bump-allocates directly there; everything else goes through the
// calling mutator's TLH into Gen0. onOutOfSpace, if non-nil, is run
// (and the allocation retried once) should Gen0 need to reclaim space
// first — see EnsureTLH.
func (h *Heap) Alloc(m *Mutator, t *types.TypeDesc, forced Generation, forcedSet bool, onOutOfSpace func() error) (uintptr, error) {
	if t == nil {
		return 0, gcerr.BadArgument("alloc", "nil type")
	}
	if t.Kind != types.KindClass {
		return 0, gcerr.BadArgument("alloc", "only Class kinds allocate on the heap")
	}
	total := memory.AlignUp(memory.HeaderSize+t.Size, memory.PtrSize)

	gen := GenGen0
	if forcedSet {
		gen = forced
	}
	if total >= h.cfg.LargeObjectThreshold || gen == GenLoh {
		return h.allocDirect(h.loh, t, total)
	}
	switch gen {
	case GenGen1:
		return h.allocDirect(h.gen1, t, total)
	case GenGen2:
		return h.allocDirect(h.gen2, t, total)
	case GenRegion:
		return 0, gcerr.BadArgument("alloc", "cannot allocate managed objects into a region")
	default:
		if err := h.EnsureTLH(m, total, onOutOfSpace); err != nil {
			return 0, err
		}
		return h.AllocateGen0(m, total, t.TypeID), nil
	}
}

// AllocInRegion bump-allocates a typed object directly into r, the way
// allocDirect lays out Gen1/Gen2/Loh objects. A region object carries
// the same header as any managed object — so the write barrier can
// resolve its fields like any other parent — but the region itself is
// never traced, compacted or promoted; only writes that store a
// managed address into one of its fields are tracked, as an external
// root.
func (h *Heap) AllocInRegion(r *Region, t *types.TypeDesc) (uintptr, error) {
	if t == nil || t.Kind != types.KindClass {
		return 0, gcerr.BadArgument("allocInRegion", "only Class kinds allocate")
	}
	total := memory.AlignUp(memory.HeaderSize+t.Size, memory.PtrSize)
	return h.allocDirect(r.segment, t, total)
}

// allocDirect bump-allocates directly into seg (Gen1/Gen2/Loh/Region),
// zeroes the header and updates seg's brick index, where it has one,
// with the new object's absolute start.
func (h *Heap) allocDirect(seg *Segment, t *types.TypeDesc, total uintptr) (uintptr, error) {
	off, ok := seg.TryAllocate(total)
	if !ok {
		return 0, gcerr.OutOfMemory("alloc", seg.Generation().String()+" segment full")
	}
	seg.buf.WriteHeader(off, t.TypeID)
	if seg.bricks != nil {
		seg.bricks.OnAllocation(off)
	}
	return seg.Base() + off, nil
}
