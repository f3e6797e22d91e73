package heap

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/memory"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// TypeLookup resolves a type id to its descriptor. Both the sequential
// local collector (one heap's own type table) and gcrt's parallel
// driver (a lookup against heap 0's table, which holds every type
// since every registered type is broadcast to every heap) satisfy it
// with the same signature.
type TypeLookup func(id uint64) (*types.TypeDesc, bool)

// ObjectTotalSize is the number of bytes an object of type t occupies
// on a segment: header plus payload, rounded up to pointer size.
func ObjectTotalSize(t *types.TypeDesc) uintptr {
	return memory.AlignUp(memory.HeaderSize+t.Size, memory.PtrSize)
}

// CollectRefSlots returns the absolute (header-relative) byte offset
// of every reference-typed storage location in an object of type t,
// including references nested one level inside a struct field.
func CollectRefSlots(t *types.TypeDesc) []uintptr {
	var slots []uintptr
	for _, f := range t.Fields {
		switch f.Kind {
		case types.RefField:
			slots = append(slots, memory.HeaderSize+f.Offset)
		case types.StructField:
			for _, nf := range f.Nested.Fields {
				if nf.Kind == types.RefField {
					slots = append(slots, memory.HeaderSize+f.Offset+nf.Offset)
				}
			}
		}
	}
	return slots
}

// WalkDirtyCardObjects implements the object-contiguous dirty-card
// walk: snap cardStart to an object start via the segment's brick
// index, then visit objects back to back (advancing by each object's
// own size) until the cursor passes cardEnd.
func WalkDirtyCardObjects(seg *Segment, cardStart, cardEnd uintptr, typeOf TypeLookup, visit func(objAddr uintptr, t *types.TypeDesc) error) error {
	startOff := seg.bricks.SnapToObjectStart(cardStart)
	off := startOff
	for off < cardEnd && off < seg.AllocPtr() {
		typeID := seg.buf.ReadHeaderTypeID(off)
		t, ok := typeOf(typeID)
		if !ok {
			return gcerr.InvalidReference("walkDirtyCardObjects", "unregistered type id")
		}
		if err := visit(seg.Base()+off, t); err != nil {
			return err
		}
		off += ObjectTotalSize(t)
	}
	return nil
}

// CompactGen0 copies every live object in seg densely to the low end
// of the same buffer, via a scratch copy, and returns the old->new
// address map. seg's allocation cursor is left at the end of the
// surviving data and the tail is zeroed.
func CompactGen0(seg *Segment, isLive func(uintptr) bool, typeOf TypeLookup) (map[uintptr]uintptr, error) {
	limit := seg.AllocPtr()
	scratch := make([]byte, limit)
	copy(scratch, seg.Buffer().Bytes()[:limit])

	relocMap := make(map[uintptr]uintptr)
	var writeOff uintptr
	var readOff uintptr
	for readOff+memory.HeaderSize <= limit {
		typeID := memory.ReadUint64At(scratch, readOff+8)
		if typeID == 0 {
			// Unused tail of a TLH slab: no object starts here.
			readOff += memory.PtrSize
			continue
		}
		t, ok := typeOf(typeID)
		if !ok {
			return nil, gcerr.InvalidReference("compactGen0", "unregistered type id")
		}
		size := ObjectTotalSize(t)
		oldAddr := seg.Base() + readOff
		if isLive(oldAddr) {
			newAddr := seg.Base() + writeOff
			copy(seg.Buffer().Bytes()[writeOff:writeOff+size], scratch[readOff:readOff+size])
			relocMap[oldAddr] = newAddr
			writeOff += size
		}
		readOff += size
	}
	seg.Buffer().Zero(writeOff, limit-writeOff)
	seg.allocPtr = writeOff
	return relocMap, nil
}

// PromoteSurvivors walks every remaining object in from (front to
// back) and tryAllocates a copy of each in to, recording the old->new
// map and updating to's brick index with each new object's start.
// from is left untouched; the caller resets it once this returns.
func PromoteSurvivors(from, to *Segment, typeOf TypeLookup) (map[uintptr]uintptr, error) {
	relocMap := make(map[uintptr]uintptr)
	limit := from.AllocPtr()
	var readOff uintptr
	for readOff < limit {
		typeID := from.Buffer().ReadHeaderTypeID(readOff)
		t, ok := typeOf(typeID)
		if !ok {
			return nil, gcerr.InvalidReference("promoteSurvivors", "unregistered type id")
		}
		size := ObjectTotalSize(t)
		newOff, ok := to.TryAllocate(size)
		if !ok {
			return nil, gcerr.OutOfMemory("promoteSurvivors", "gen1 cannot accommodate survivor")
		}
		copy(to.Buffer().Bytes()[newOff:newOff+size], from.Buffer().Bytes()[readOff:readOff+size])
		if to.bricks != nil {
			to.bricks.OnAllocation(newOff)
		}
		relocMap[from.Base()+readOff] = to.Base() + newOff
		readOff += size
	}
	return relocMap, nil
}

// RewriteReferences applies a broadcast relocation map to one heap:
// every root, every region's external roots, and every reference
// field (including nested struct refs) of every object in every
// segment whose value is a key in relocMap is rewritten to the mapped
// address.
func RewriteReferences(h *Heap, relocMap map[uintptr]uintptr, typeOf TypeLookup) error {
	if len(relocMap) == 0 {
		return nil
	}
	h.rootsMu.Lock()
	for name, addr := range h.roots {
		if newAddr, ok := relocMap[addr]; ok {
			h.roots[name] = newAddr
		}
	}
	h.rootsMu.Unlock()

	for _, r := range h.regions {
		r.rewriteExternalRoots(relocMap)
	}

	for _, seg := range h.segments {
		if err := rewriteSegmentRefs(seg, relocMap, typeOf); err != nil {
			return err
		}
	}
	return nil
}

func rewriteSegmentRefs(seg *Segment, relocMap map[uintptr]uintptr, typeOf TypeLookup) error {
	limit := seg.AllocPtr()
	var off uintptr
	for off+memory.HeaderSize <= limit {
		typeID := seg.Buffer().ReadHeaderTypeID(off)
		if typeID == 0 {
			// Unused tail of a TLH slab in a Gen0 not yet compacted.
			off += memory.PtrSize
			continue
		}
		t, ok := typeOf(typeID)
		if !ok {
			return gcerr.InvalidReference("rewriteSegmentRefs", "unregistered type id")
		}
		for _, slot := range CollectRefSlots(t) {
			old := seg.Buffer().ReadUintptr(off + slot)
			if old == 0 {
				continue
			}
			if newAddr, ok := relocMap[old]; ok {
				seg.Buffer().WriteUintptr(off+slot, newAddr)
			}
		}
		off += ObjectTotalSize(t)
	}
	return nil
}
