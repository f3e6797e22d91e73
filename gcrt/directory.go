package gcrt

import (
	"sort"

	"github.com/EvheniyHlushko/GenerationalGC/heap"
)

// Directory is the single global address→(heap, segment) resolver:
// one segment list across every heap, sorted by base address,
// searched with one binary search. It is the one source of truth for
// both the global ephemeral predicate and owner routing during
// parallel mark, rather than having each caller re-derive ownership
// its own way.
type Directory struct {
	entries []dirEntry
}

type dirEntry struct {
	base      uintptr
	seg       *heap.Segment
	heapIndex int
}

// BuildDirectory snapshots every heap's current segment list. Rebuild
// it whenever a region is added or destroyed, and always immediately
// before a collection.
func BuildDirectory(heaps []*heap.Heap) *Directory {
	var entries []dirEntry
	for hi, h := range heaps {
		for _, seg := range h.Segments() {
			entries = append(entries, dirEntry{base: seg.Base(), seg: seg, heapIndex: hi})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].base < entries[j].base })
	return &Directory{entries: entries}
}

// Resolve satisfies heap.Resolver: it answers which heap and segment
// owns addr, across every heap in the directory.
func (d *Directory) Resolve(addr uintptr) (heapIndex int, seg *heap.Segment, ok bool) {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].base > addr })
	if i == 0 {
		return 0, nil, false
	}
	e := d.entries[i-1]
	if e.seg.Contains(addr) {
		return e.heapIndex, e.seg, true
	}
	return 0, nil, false
}

// IsEphemeral reports whether some heap contains addr in its Gen0 or
// Gen1.
func (d *Directory) IsEphemeral(addr uintptr) bool {
	_, seg, ok := d.Resolve(addr)
	return ok && seg.Generation().Ephemeral()
}
