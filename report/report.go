// Package report builds and renders an inspectable per-heap snapshot:
// per-segment occupancy and card counts, every live object with its
// field values, and the heap's root set. Snapshot is pure data a
// caller can assert on directly; Render lays it out as tab-aligned
// text via text/tabwriter rather than println.
package report

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/heap"
	"github.com/EvheniyHlushko/GenerationalGC/memory"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// FieldValue is one scalar field's name and its formatted value.
type FieldValue struct {
	Name  string
	Value string
}

// Object is one live object's snapshot: its identity, size, and the
// formatted value of every field (nested struct fields are summarized
// separately, as a single string each, rather than flattened).
type Object struct {
	Index           int
	TypeName        string
	Address         uintptr
	Size            uintptr
	Fields          []FieldValue
	StructSummaries []FieldValue
}

// Segment is one generation's occupancy, card state, and object list.
type Segment struct {
	Generation     string
	Base           uintptr
	Size           uintptr
	AllocatedBytes uintptr
	DirtyCardCount int
	Objects        []Object
}

// Heap is one heap's full snapshot: every segment plus the root set.
type Heap struct {
	Index    int
	Segments []Segment
	Roots    map[string]uintptr
}

// Snapshot walks every segment of h and every live object on it,
// producing per-segment occupancy and card state plus the object list
// and the heap's roots.
func Snapshot(h *heap.Heap) (*Heap, error) {
	hs := &Heap{Index: h.Index, Roots: h.Roots()}
	for _, seg := range h.Segments() {
		s, err := snapshotSegment(h, seg)
		if err != nil {
			return nil, err
		}
		hs.Segments = append(hs.Segments, s)
	}
	return hs, nil
}

func snapshotSegment(h *heap.Heap, seg *heap.Segment) (Segment, error) {
	s := Segment{
		Generation:     seg.Generation().String(),
		Base:           seg.Base(),
		Size:           seg.Size(),
		AllocatedBytes: seg.AllocatedBytes(),
	}
	if seg.Cards() != nil {
		s.DirtyCardCount = seg.Cards().DirtyCount()
	}

	limit := seg.AllocPtr()
	var off uintptr
	idx := 0
	for off+memory.HeaderSize <= limit {
		typeID := seg.Buffer().ReadHeaderTypeID(off)
		if typeID == 0 {
			// Unused tail of a TLH slab: no object starts here.
			off += memory.PtrSize
			continue
		}
		t, ok := h.TypeByID(typeID)
		if !ok {
			return Segment{}, gcerr.InvalidReference("snapshotSegment", "unregistered type id")
		}
		obj := Object{
			Index:    idx,
			TypeName: t.Name,
			Address:  seg.Base() + off,
			Size:     t.Size,
		}
		objBase := off + memory.HeaderSize
		for _, f := range t.Fields {
			if f.Kind == types.StructField {
				obj.StructSummaries = append(obj.StructSummaries, FieldValue{
					Name:  f.Name,
					Value: summarizeStruct(seg.Buffer(), objBase+f.Offset, f.Nested),
				})
				continue
			}
			obj.Fields = append(obj.Fields, FieldValue{Name: f.Name, Value: formatField(seg.Buffer(), objBase, f)})
		}
		s.Objects = append(s.Objects, obj)
		off += heap.ObjectTotalSize(t)
		idx++
	}
	return s, nil
}

func formatField(buf *memory.Buffer, base uintptr, f types.FieldDesc) string {
	switch f.Kind {
	case types.Int32Field:
		return fmt.Sprintf("%d", buf.ReadInt32(base+f.Offset))
	case types.LongField:
		return fmt.Sprintf("%d", int64(buf.ReadUint64(base+f.Offset)))
	case types.DecimalField:
		return fmt.Sprintf("%x", buf.ReadDecimal(base+f.Offset))
	case types.RefField:
		return fmt.Sprintf("0x%x", buf.ReadUintptr(base+f.Offset))
	default:
		return "?"
	}
}

func summarizeStruct(buf *memory.Buffer, base uintptr, t *types.TypeDesc) string {
	parts := make([]string, 0, len(t.Fields))
	for _, nf := range t.Fields {
		parts = append(parts, nf.Name+":"+formatField(buf, base, nf))
	}
	return t.Name + "{" + strings.Join(parts, ", ") + "}"
}

// Render formats a Heap snapshot as a tab-aligned text dump: one
// section of roots, then one table per segment listing every object.
func Render(hs *Heap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "heap %d\n", hs.Index)

	names := make([]string, 0, len(hs.Roots))
	for name := range hs.Roots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  root\t%s\t0x%x\n", name, hs.Roots[name])
	}

	for _, seg := range hs.Segments {
		fmt.Fprintf(&b, "\nsegment %s\tbase 0x%x\tsize %d\tallocated %d\tdirtyCards %d\n",
			seg.Generation, seg.Base, seg.Size, seg.AllocatedBytes, seg.DirtyCardCount)

		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "  idx\ttype\taddress\tsize\tfields")
		for _, obj := range seg.Objects {
			var fields []string
			for _, f := range obj.Fields {
				fields = append(fields, f.Name+"="+f.Value)
			}
			for _, f := range obj.StructSummaries {
				fields = append(fields, f.Name+"="+f.Value)
			}
			fmt.Fprintf(tw, "  %d\t%s\t0x%x\t%d\t%s\n", obj.Index, obj.TypeName, obj.Address, obj.Size, strings.Join(fields, " "))
		}
		tw.Flush()
	}
	return b.String()
}
