package gcrt

import (
	"github.com/EvheniyHlushko/GenerationalGC/heap"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// globalTypeLookup resolves a type id against heap 0's type table.
// Every heap's table is an identical broadcast copy (RegisterType
// writes to all of them), so any one heap answers for all of them.
func (rt *Runtime) globalTypeLookup(id uint64) (*types.TypeDesc, bool) {
	return rt.heaps[0].TypeByID(id)
}

// CollectEphemeralAllParallel is the core parallel collector:
// stop-the-world, parallel seed+mark across every heap to quiescence,
// then per-heap Gen0 compaction and Gen0→Gen1 promotion, each
// broadcast to every heap so any cross-heap reference is fixed up.
// Callers are responsible for quiescing mutators first.
func (rt *Runtime) CollectEphemeralAllParallel() error {
	rt.log.Debug("parallel minor gc start", "heaps", len(rt.heaps))
	dir := rt.Directory()
	ms := newMarkState(dir, len(rt.heaps))

	if err := seedAll(rt.heaps, ms, rt.globalTypeLookup); err != nil {
		return err
	}
	if err := runParallelMark(rt.heaps, ms, rt.globalTypeLookup); err != nil {
		return err
	}

	live := ms.visited
	isLive := func(addr uintptr) bool { return live.Contains(addr) }

	var promoted int
	for _, h := range rt.heaps {
		relocCompaction, err := heap.CompactGen0(h.Gen0(), isLive, rt.globalTypeLookup)
		if err != nil {
			return err
		}
		if err := rt.broadcastRewrite(relocCompaction); err != nil {
			return err
		}
	}

	for _, h := range rt.heaps {
		relocPromotion, err := heap.PromoteSurvivors(h.Gen0(), h.Gen1(), rt.globalTypeLookup)
		if err != nil {
			return err
		}
		promoted += len(relocPromotion)
		h.Gen0().ResetNurseryLayout()
		if err := rt.broadcastRewrite(relocPromotion); err != nil {
			return err
		}
	}

	rt.postCollectionAll()
	rt.log.Info("parallel minor gc done", "promoted", promoted)
	return nil
}

// broadcastRewrite applies one relocation map to every heap: each
// heap rewrites every reference (its own roots and every object/struct
// ref field on every one of its segments) whose old value is a key in
// the map.
func (rt *Runtime) broadcastRewrite(relocMap map[uintptr]uintptr) error {
	for _, h := range rt.heaps {
		if err := heap.RewriteReferences(h, relocMap, rt.globalTypeLookup); err != nil {
			return err
		}
	}
	return nil
}

// postCollectionAll invalidates every TLH and clears every old
// generation's dirty cards, on every heap.
func (rt *Runtime) postCollectionAll() {
	for _, h := range rt.heaps {
		h.InvalidateMutators()
		h.ClearOldCards()
	}
}
