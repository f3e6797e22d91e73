package gcrt

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/heap"
)

// CollectFullAll runs a mark-only reachability trace from every
// heap's roots and every region's external roots, across every
// generation of every heap including Gen2 and Loh. It never compacts,
// promotes or moves anything, and a Region is never traced into.
func (rt *Runtime) CollectFullAll() error {
	dir := rt.Directory()
	visited := NewVisitedSet()

	enqueue := func(addr uintptr, frontier *[]uintptr) {
		if addr == 0 {
			return
		}
		_, seg, ok := dir.Resolve(addr)
		if !ok || seg.Generation() == heap.GenRegion {
			return
		}
		if visited.TryMark(addr) {
			*frontier = append(*frontier, addr)
		}
	}

	var frontier []uintptr
	for _, h := range rt.heaps {
		for _, addr := range h.Roots() {
			enqueue(addr, &frontier)
		}
		for _, r := range h.Regions() {
			for _, addr := range r.ExternalRoots() {
				enqueue(addr, &frontier)
			}
		}
	}

	for len(frontier) > 0 {
		addr := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		_, seg, ok := dir.Resolve(addr)
		if !ok {
			continue
		}
		off := addr - seg.Base()
		typeID := seg.Buffer().ReadHeaderTypeID(off)
		t, ok := rt.globalTypeLookup(typeID)
		if !ok {
			return gcerr.InvalidReference("collectFullAll", "unregistered type id")
		}
		for _, slot := range heap.CollectRefSlots(t) {
			child := seg.Buffer().ReadUintptr(off + slot)
			enqueue(child, &frontier)
		}
	}
	return nil
}
