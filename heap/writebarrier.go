package heap

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/memory"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// Resolver answers "which heap and segment owns this address", across
// however many heaps a caller cares about. A lone Heap satisfies it
// for the local-only collector and single-heap tests; gcrt.Directory
// satisfies it for everything cross-heap, as the single source of
// truth for both isEphemeral-style checks and owner routing.
type Resolver interface {
	Resolve(addr uintptr) (heapIndex int, seg *Segment, ok bool)
}

// Resolve lets a Heap act as its own Resolver.
func (h *Heap) Resolve(addr uintptr) (int, *Segment, bool) {
	seg, ok := h.ContainsAddress(addr)
	return h.Index, seg, ok
}

// FieldPath names a field to read or write: either a top-level field
// by name, or (when NestedField is set) a field nested inside a
// struct-typed field.
type FieldPath struct {
	Field       string
	NestedField string
}

func (h *Heap) resolveObject(addr uintptr, seg *Segment) (uintptr, *types.TypeDesc, error) {
	if !seg.Contains(addr) {
		return 0, nil, gcerr.InvalidReference("resolveObject", "address not in segment")
	}
	off := addr - seg.Base()
	typeID := seg.buf.ReadHeaderTypeID(off)
	t, ok := h.TypeByID(typeID)
	if !ok {
		return 0, nil, gcerr.InvalidReference("resolveObject", "unregistered type id")
	}
	return off, t, nil
}

func resolveField(t *types.TypeDesc, fp FieldPath) (offset uintptr, kind types.FieldKind, err error) {
	f, ok := t.FieldByName(fp.Field)
	if !ok {
		return 0, 0, gcerr.BadArgument("resolveField", "unknown field \""+fp.Field+"\"")
	}
	if fp.NestedField == "" {
		return f.Offset, f.Kind, nil
	}
	if f.Kind != types.StructField {
		return 0, 0, gcerr.BadArgument("resolveField", "field \""+fp.Field+"\" is not a struct")
	}
	nf, ok := f.Nested.FieldByName(fp.NestedField)
	if !ok {
		return 0, 0, gcerr.BadArgument("resolveField", "unknown nested field \""+fp.NestedField+"\"")
	}
	return f.Offset + nf.Offset, nf.Kind, nil
}

func (h *Heap) regionFor(seg *Segment) *Region {
	for _, r := range h.regions {
		if r.segment == seg {
			return r
		}
	}
	return nil
}

// WriteRef implements the write-barrier rules for one reference store
// parent.field := child: it resolves parent, writes the raw address,
// rejects a managed→region edge, dirties the parent segment's card on
// any old→(possibly young) write, and records an external root when a
// region writes into managed memory.
func (h *Heap) WriteRef(parentAddr uintptr, fp FieldPath, childAddr uintptr, dir Resolver) error {
	seg, ok := h.ContainsAddress(parentAddr)
	if !ok {
		return gcerr.InvalidReference("setRef", "parent address not owned by this heap")
	}
	objOff, t, err := h.resolveObject(parentAddr, seg)
	if err != nil {
		return err
	}
	fieldOff, kind, err := resolveField(t, fp)
	if err != nil {
		return err
	}
	if kind != types.RefField {
		return gcerr.BadArgument("setRef", "field is not a reference")
	}
	writeOff := objOff + memory.HeaderSize + fieldOff

	var childSeg *Segment
	var childResolved bool
	if childAddr != 0 {
		_, childSeg, childResolved = dir.Resolve(childAddr)
	}

	// Rule 3: a managed->region edge is forbidden outright.
	if childResolved && childSeg.Generation() == GenRegion && seg.Generation() != GenRegion {
		return gcerr.BadReferenceEdge("setRef", "managed object may not reference a region")
	}

	seg.buf.WriteUintptr(writeOff, childAddr)

	// Rule 4: dirty the card covering the write if parent is old and
	// child is (or might be) ephemeral.
	if seg.Generation().Old() && seg.cards != nil {
		dirty := false
		if childAddr != 0 {
			if childResolved {
				dirty = childSeg.Generation().Ephemeral()
			} else {
				dirty = true // unresolved cross-heap address: conservatively ephemeral
			}
		}
		if dirty {
			seg.cards.MarkDirtyByOffset(writeOff)
		}
	}

	// Rule 5: a region writing into managed memory records an external root.
	if seg.Generation() == GenRegion && childAddr != 0 && childResolved && childSeg.Generation() != GenRegion {
		if r := h.regionFor(seg); r != nil {
			r.AddExternalRoot(childAddr)
		}
	}
	return nil
}

// WriteInt32 sets an Int32-typed field. Int32 stores never touch the
// card table — only reference writes do.
func (h *Heap) WriteInt32(addr uintptr, fp FieldPath, v int32) error {
	seg, ok := h.ContainsAddress(addr)
	if !ok {
		return gcerr.InvalidReference("setInt32", "address not owned by this heap")
	}
	objOff, t, err := h.resolveObject(addr, seg)
	if err != nil {
		return err
	}
	fieldOff, kind, err := resolveField(t, fp)
	if err != nil {
		return err
	}
	if kind != types.Int32Field {
		return gcerr.BadArgument("setInt32", "field is not an int32")
	}
	seg.buf.WriteInt32(objOff+memory.HeaderSize+fieldOff, v)
	return nil
}

// ReadRef reads a reference-typed field's current value.
func (h *Heap) ReadRef(addr uintptr, fp FieldPath) (uintptr, error) {
	seg, ok := h.ContainsAddress(addr)
	if !ok {
		return 0, gcerr.InvalidReference("readRef", "address not owned by this heap")
	}
	objOff, t, err := h.resolveObject(addr, seg)
	if err != nil {
		return 0, err
	}
	fieldOff, kind, err := resolveField(t, fp)
	if err != nil {
		return 0, err
	}
	if kind != types.RefField {
		return 0, gcerr.BadArgument("readRef", "field is not a reference")
	}
	return seg.buf.ReadUintptr(objOff + memory.HeaderSize + fieldOff), nil
}

// ReadInt32 reads an Int32-typed field's current value.
func (h *Heap) ReadInt32(addr uintptr, fp FieldPath) (int32, error) {
	seg, ok := h.ContainsAddress(addr)
	if !ok {
		return 0, gcerr.InvalidReference("readInt32", "address not owned by this heap")
	}
	objOff, t, err := h.resolveObject(addr, seg)
	if err != nil {
		return 0, err
	}
	fieldOff, kind, err := resolveField(t, fp)
	if err != nil {
		return 0, err
	}
	if kind != types.Int32Field {
		return 0, gcerr.BadArgument("readInt32", "field is not an int32")
	}
	return seg.buf.ReadInt32(objOff + memory.HeaderSize + fieldOff), nil
}
