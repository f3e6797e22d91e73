package gcrt

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/heap"
	"github.com/EvheniyHlushko/GenerationalGC/report"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// Alloc allocates a value of type t on threadID's home heap, via that
// thread's private mutator. The runtime creates one mutator per
// (threadID, home heap) pair on first use.
func (rt *Runtime) Alloc(threadID, cpuID int64, t *types.TypeDesc, forced heap.Generation, forcedSet bool) (uintptr, error) {
	h := rt.HomeHeap(threadID, cpuID)
	m := rt.mutatorFor(h, threadID)
	return h.Alloc(m, t, forced, forcedSet, func() error { return h.CollectEphemeralAll() })
}

func (rt *Runtime) mutatorFor(h *heap.Heap, threadID int64) *heap.Mutator {
	rt.mutatorsMu.Lock()
	defer rt.mutatorsMu.Unlock()
	if rt.mutators == nil {
		rt.mutators = make(map[int64]*heap.Mutator)
	}
	key := int64(h.Index)<<32 ^ threadID
	if m, ok := rt.mutators[key]; ok {
		return m
	}
	m := h.NewMutator()
	rt.mutators[key] = m
	return m
}

// SetRoot installs a named root on the heap owning addr. addr == 0
// names an empty root on heap 0 (there is nothing to resolve).
func (rt *Runtime) SetRoot(name string, addr uintptr) error {
	if addr == 0 {
		return rt.heaps[0].SetRoot(name, 0)
	}
	dir := rt.Directory()
	heapIndex, _, ok := dir.Resolve(addr)
	if !ok {
		return gcerr.InvalidReference("setRoot", "address not owned by any heap")
	}
	return rt.heaps[heapIndex].SetRoot(name, addr)
}

// SetInt32 routes to the heap owning obj.
func (rt *Runtime) SetInt32(obj uintptr, field string, v int32) error {
	h, err := rt.ownerOf(rt.Directory(), obj)
	if err != nil {
		return err
	}
	return h.WriteInt32(obj, heap.FieldPath{Field: field}, v)
}

// SetRef routes to the heap owning obj, resolving child against the
// runtime-wide directory so a cross-heap store is accepted.
func (rt *Runtime) SetRef(obj uintptr, field string, child uintptr) error {
	dir := rt.Directory()
	h, err := rt.ownerOf(dir, obj)
	if err != nil {
		return err
	}
	return h.WriteRef(obj, heap.FieldPath{Field: field}, child, dir)
}

// SetStructRef routes a nested struct field's reference write to the
// heap owning obj.
func (rt *Runtime) SetStructRef(obj uintptr, structField, nestedField string, child uintptr) error {
	dir := rt.Directory()
	h, err := rt.ownerOf(dir, obj)
	if err != nil {
		return err
	}
	return h.WriteRef(obj, heap.FieldPath{Field: structField, NestedField: nestedField}, child, dir)
}

func (rt *Runtime) ownerOf(dir *Directory, addr uintptr) (*heap.Heap, error) {
	heapIndex, _, ok := dir.Resolve(addr)
	if !ok {
		return nil, gcerr.InvalidReference("ownerOf", "address not owned by any heap")
	}
	return rt.heaps[heapIndex], nil
}

// MarkEphemeralAll is a diagnostic mark-only pass restricted to each
// heap's own ephemeral generations, run sequentially heap by heap.
func (rt *Runtime) MarkEphemeralAll() error {
	for _, h := range rt.heaps {
		if err := h.MarkEphemeralAll(); err != nil {
			return err
		}
	}
	return nil
}

// CollectEphemeralAll is a sequential per-heap minor GC, run heap by
// heap rather than via the parallel driver.
func (rt *Runtime) CollectEphemeralAll() error {
	for _, h := range rt.heaps {
		if err := h.CollectEphemeralAll(); err != nil {
			return err
		}
	}
	return nil
}

// GetReport snapshots one heap by index.
func (rt *Runtime) GetReport(heapIndex int) (*report.Heap, error) {
	return report.Snapshot(rt.heaps[heapIndex])
}
