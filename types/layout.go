package types

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/memory"
)

// ComputeLayout assigns Offset/Size/Align to every field of t and
// freezes t.Size/t.Align:
//
//   - Int32:   size 4,  align 4
//   - Long:    size 8,  align = pointer size
//   - Decimal: size 16, align 4 (deliberately narrower than its size)
//   - Ref:     size and align = pointer size
//   - Struct:  laid out recursively; as a field, its size/align are
//     its own (already-padded) Size/Align
//
// Fields are placed in declaration order with no reordering. A Class
// descriptor's Size is the raw cursor after the last field (no
// trailing padding); a Struct descriptor's Size is padded up to its
// own alignment so arrays of it stay aligned, and an empty struct has
// size 1. ComputeLayout is idempotent: once t.laidOut is set, a
// second call is a no-op, matching "calling twice is a no-op."
func ComputeLayout(t *TypeDesc) error {
	if t == nil {
		return gcerr.BadArgument("computeLayout", "nil type descriptor")
	}
	if t.laidOut {
		return nil
	}
	if t.Kind != KindClass && t.Kind != KindStruct {
		return gcerr.BadArgument("computeLayout", "unknown type kind")
	}

	var cursor uintptr
	var maxAlign uintptr = 1

	for i := range t.Fields {
		f := &t.Fields[i]
		var size, align uintptr

		switch f.Kind {
		case Int32Field:
			size, align = 4, 4
		case LongField:
			size, align = 8, memory.PtrSize
		case DecimalField:
			size, align = 16, 4
		case RefField:
			size, align = memory.PtrSize, memory.PtrSize
		case StructField:
			if f.Nested == nil {
				return gcerr.BadArgument("computeLayout", "struct field \""+f.Name+"\" has no nested type")
			}
			if err := ComputeLayout(f.Nested); err != nil {
				return err
			}
			size, align = f.Nested.Size, f.Nested.Align
		default:
			return gcerr.BadArgument("computeLayout", "unknown field kind on \""+f.Name+"\"")
		}

		cursor = memory.AlignUp(cursor, align)
		f.Offset = cursor
		f.Size = size
		f.Align = align
		cursor += size
		if align > maxAlign {
			maxAlign = align
		}
	}

	switch {
	case t.Kind == KindStruct && len(t.Fields) == 0:
		t.Size, t.Align = 1, 1
	case t.Kind == KindStruct:
		t.Size, t.Align = memory.AlignUp(cursor, maxAlign), maxAlign
	default: // KindClass: final cursor, not padded
		t.Size, t.Align = cursor, maxAlign
	}

	t.laidOut = true
	return nil
}
