package gcrt

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/heap"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// markState is the shared scratch for one parallel minor GC: a
// visited set, one worklist per heap, and the inflight counter
// convergence depends on.
type markState struct {
	dir       *Directory
	visited   *VisitedSet
	worklists []*Worklist
	inflight  int64
}

func newMarkState(dir *Directory, heapCount int) *markState {
	ms := &markState{dir: dir, visited: NewVisitedSet(), worklists: make([]*Worklist, heapCount)}
	for i := range ms.worklists {
		ms.worklists[i] = NewWorklist()
	}
	return ms
}

// enqueueIfFirst is the mark-first primitive: only the caller that
// wins the insert-if-absent into visited ever pushes addr, onto the
// worklist of the heap that owns it.
func (ms *markState) enqueueIfFirst(addr uintptr) {
	if addr == 0 || !ms.visited.TryMark(addr) {
		return
	}
	heapIndex, _, ok := ms.dir.Resolve(addr)
	if !ok {
		return
	}
	ms.worklists[heapIndex].Push(WorkItem{Addr: addr, HeapIndex: heapIndex})
}

// seedAll performs the single-threaded seeding pass across every
// heap: roots, region external roots, and the old-generation
// dirty-card scan, each filtered by the global isEphemeral predicate.
func seedAll(heaps []*heap.Heap, ms *markState, typeOf heap.TypeLookup) error {
	isEphemeral := ms.dir.IsEphemeral
	for _, h := range heaps {
		for _, addr := range h.Roots() {
			if isEphemeral(addr) {
				ms.enqueueIfFirst(addr)
			}
		}
		for _, r := range h.Regions() {
			for _, addr := range r.ExternalRoots() {
				if isEphemeral(addr) {
					ms.enqueueIfFirst(addr)
				}
			}
		}
		for _, seg := range []*heap.Segment{h.Gen1(), h.Gen2(), h.Loh()} {
			for _, rng := range seg.Cards().DirtyRanges(seg.Size()) {
				err := heap.WalkDirtyCardObjects(seg, rng.Start, rng.End, typeOf, func(objAddr uintptr, t *types.TypeDesc) error {
					for _, slot := range heap.CollectRefSlots(t) {
						child := seg.Buffer().ReadUintptr(objAddr - seg.Base() + slot)
						if child != 0 && isEphemeral(child) {
							ms.enqueueIfFirst(child)
						}
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// runParallelMark spawns one worker per heap, each pinned to a home
// heap index, and runs each to quiescence.
func runParallelMark(heaps []*heap.Heap, ms *markState, typeOf heap.TypeLookup) error {
	var g errgroup.Group
	for home := range heaps {
		home := home
		g.Go(func() error {
			return markLoop(home, heaps, ms, typeOf)
		})
	}
	return g.Wait()
}

// markLoop is one worker's steady state: pop from its own worklist,
// else steal from another in index order; terminate only once every
// queue is empty and no worker is mid-scan.
func markLoop(home int, heaps []*heap.Heap, ms *markState, typeOf heap.TypeLookup) error {
	for {
		item, ok := ms.worklists[home].Pop()
		if !ok {
			item, ok = stealFrom(home, ms.worklists)
		}
		if !ok {
			if atomic.LoadInt64(&ms.inflight) == 0 && allEmpty(ms.worklists) {
				return nil
			}
			runtime.Gosched()
			continue
		}

		atomic.AddInt64(&ms.inflight, 1)
		err := scanOne(item, heaps, ms, typeOf)
		atomic.AddInt64(&ms.inflight, -1)
		if err != nil {
			return err
		}
	}
}

func stealFrom(home int, worklists []*Worklist) (WorkItem, bool) {
	n := len(worklists)
	for i := 1; i < n; i++ {
		idx := (home + i) % n
		if item, ok := worklists[idx].Steal(); ok {
			return item, true
		}
	}
	return WorkItem{}, false
}

func allEmpty(worklists []*Worklist) bool {
	for _, w := range worklists {
		if w.Len() > 0 {
			return false
		}
	}
	return true
}

// scanOne resolves the popped address to its owning heap, scans its
// reference-typed fields (including nested struct refs), and enqueues
// every non-null, globally-ephemeral child.
func scanOne(item WorkItem, heaps []*heap.Heap, ms *markState, typeOf heap.TypeLookup) error {
	h := heaps[item.HeapIndex]
	seg, ok := h.ContainsAddress(item.Addr)
	if !ok {
		return gcerr.InvalidReference("parallelMark", "object not found on its recorded owner heap")
	}
	off := item.Addr - seg.Base()
	typeID := seg.Buffer().ReadHeaderTypeID(off)
	t, ok := typeOf(typeID)
	if !ok {
		return gcerr.InvalidReference("parallelMark", "unregistered type id")
	}
	for _, slot := range heap.CollectRefSlots(t) {
		child := seg.Buffer().ReadUintptr(off + slot)
		if child == 0 || !ms.dir.IsEphemeral(child) {
			continue
		}
		ms.enqueueIfFirst(child)
	}
	return nil
}
