package heap

import (
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// isEphemeralLocal is this heap's own, single-heap isEphemeral
// predicate: true iff addr falls in this heap's Gen0 or Gen1. The
// sequential collector is deliberately scoped to this heap's own
// segments — it does not know about, and cannot fix up references
// living on, any other heap.
func (h *Heap) isEphemeralLocal(addr uintptr) bool {
	return h.gen0.Contains(addr) || h.gen1.Contains(addr)
}

func (h *Heap) seedEphemeral(visited map[uintptr]struct{}, isEphemeral func(uintptr) bool) ([]uintptr, error) {
	var worklist []uintptr
	enqueue := func(addr uintptr) {
		if addr == 0 || !isEphemeral(addr) {
			return
		}
		if _, seen := visited[addr]; seen {
			return
		}
		visited[addr] = struct{}{}
		worklist = append(worklist, addr)
	}

	for _, addr := range h.Roots() {
		enqueue(addr)
	}
	for _, r := range h.regions {
		for _, addr := range r.ExternalRoots() {
			enqueue(addr)
		}
	}

	var seedErr error
	for _, seg := range []*Segment{h.gen1, h.gen2, h.loh} {
		for _, rng := range seg.cards.DirtyRanges(seg.Size()) {
			err := WalkDirtyCardObjects(seg, rng.Start, rng.End, h.typeLookup, func(objAddr uintptr, t *types.TypeDesc) error {
				for _, slot := range CollectRefSlots(t) {
					child := seg.Buffer().ReadUintptr(objAddr - seg.Base() + slot)
					enqueue(child)
				}
				return nil
			})
			if err != nil {
				seedErr = err
			}
		}
	}
	return worklist, seedErr
}

// markSequential drains worklist breadth of the graph reachable
// through it, confined to isEphemeral addresses, marking each address
// visited at most once (mark-first, trivially true here since there is
// only one goroutine).
func (h *Heap) markSequential(visited map[uintptr]struct{}, worklist []uintptr, isEphemeral func(uintptr) bool) error {
	for len(worklist) > 0 {
		addr := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		seg, ok := h.ContainsAddress(addr)
		if !ok {
			return gcerr.InvalidReference("mark", "object not owned by this heap")
		}
		off := addr - seg.Base()
		typeID := seg.Buffer().ReadHeaderTypeID(off)
		t, ok := h.TypeByID(typeID)
		if !ok {
			return gcerr.InvalidReference("mark", "unregistered type id")
		}
		for _, slot := range CollectRefSlots(t) {
			child := seg.Buffer().ReadUintptr(off + slot)
			if child == 0 || !isEphemeral(child) {
				continue
			}
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			worklist = append(worklist, child)
		}
	}
	return nil
}

// CollectEphemeralAll is the sequential, single-heap fallback minor
// GC: it seeds and marks scoped to this heap alone, compacts Gen0,
// promotes survivors to Gen1, and rewrites only this heap's own
// roots/segments. It never discovers or fixes up a cross-heap pointer
// into this heap's Gen0 — that is what the parallel driver in gcrt
// exists for.
func (h *Heap) CollectEphemeralAll() error {
	h.log.Debug("minor gc start", "gen0_bytes", h.gen0.AllocatedBytes())
	visited := make(map[uintptr]struct{})
	worklist, err := h.seedEphemeral(visited, h.isEphemeralLocal)
	if err != nil {
		return err
	}
	if err := h.markSequential(visited, worklist, h.isEphemeralLocal); err != nil {
		return err
	}

	isLive := func(addr uintptr) bool {
		_, ok := visited[addr]
		return ok
	}
	relocCompaction, err := CompactGen0(h.gen0, isLive, h.typeLookup)
	if err != nil {
		return err
	}
	if err := RewriteReferences(h, relocCompaction, h.typeLookup); err != nil {
		return err
	}

	relocPromotion, err := PromoteSurvivors(h.gen0, h.gen1, h.typeLookup)
	if err != nil {
		return err
	}
	h.gen0.ResetNurseryLayout()
	if err := RewriteReferences(h, relocPromotion, h.typeLookup); err != nil {
		return err
	}

	h.postCollection()
	h.log.Info("minor gc done", "survivors", len(relocCompaction), "promoted", len(relocPromotion))
	return nil
}

// InvalidateMutators drops every mutator's TLH — its nursery slab is
// gone once Gen0 has been reset. Exported for gcrt's parallel driver,
// which performs this same step across every heap after a broadcast
// promotion.
func (h *Heap) InvalidateMutators() {
	for _, m := range h.mutators {
		m.tlh.Invalidate()
	}
}

// ClearOldCards clears the dirty cards of every old generation
// (Gen1/Gen2/Loh) — the remembered set is reconstructed by future
// write barriers.
func (h *Heap) ClearOldCards() {
	for _, seg := range []*Segment{h.gen1, h.gen2, h.loh} {
		seg.cards.ClearAll()
	}
}

func (h *Heap) postCollection() {
	h.InvalidateMutators()
	h.ClearOldCards()
}

// MarkEphemeralAll is the mark-only diagnostic variant: it performs
// the identical seed+mark as CollectEphemeralAll but never compacts,
// promotes, or clears cards, so it must not shrink dirtyCardCount,
// move any object, or change Gen0's occupancy.
func (h *Heap) MarkEphemeralAll() error {
	visited := make(map[uintptr]struct{})
	worklist, err := h.seedEphemeral(visited, h.isEphemeralLocal)
	if err != nil {
		return err
	}
	return h.markSequential(visited, worklist, h.isEphemeralLocal)
}

// MarkFull performs a pure reachability trace across every generation
// of this heap (not just the ephemeral ones). There is no sweep or
// compaction for Gen2/Loh, only marking.
func (h *Heap) MarkFull() error {
	visited := make(map[uintptr]struct{})
	var worklist []uintptr
	enqueue := func(addr uintptr) {
		if addr == 0 {
			return
		}
		seg, ok := h.ContainsAddress(addr)
		if !ok || seg.Generation() == GenRegion {
			return
		}
		if _, seen := visited[addr]; seen {
			return
		}
		visited[addr] = struct{}{}
		worklist = append(worklist, addr)
	}

	for _, addr := range h.Roots() {
		enqueue(addr)
	}
	for _, r := range h.regions {
		for _, addr := range r.ExternalRoots() {
			enqueue(addr)
		}
	}

	for len(worklist) > 0 {
		addr := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		seg, ok := h.ContainsAddress(addr)
		if !ok {
			continue
		}
		off := addr - seg.Base()
		typeID := seg.Buffer().ReadHeaderTypeID(off)
		t, ok := h.TypeByID(typeID)
		if !ok {
			return gcerr.InvalidReference("markFull", "unregistered type id")
		}
		for _, slot := range CollectRefSlots(t) {
			child := seg.Buffer().ReadUintptr(off + slot)
			enqueue(child)
		}
	}
	return nil
}
