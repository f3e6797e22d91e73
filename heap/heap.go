// Package heap implements one generational heap: its four segments
// (Gen0/Gen1/Gen2/Loh), its root set, its type table, the write
// barrier, the per-mutator TLH allocator, and the sequential
// local-only collector variants. The parallel, multi-heap driver
// lives one level up, in gcrt, which composes many Heaps together.
package heap

import (
	"sort"
	"sync"

	"github.com/EvheniyHlushko/GenerationalGC/config"
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/gclog"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// Heap owns the four managed segments, any regions registered against
// it, the root set, the type table, and the mutators allocating out of
// it. Allocation, writes and root mutation on a given heap are
// expected to be serialized by the caller — there is deliberately no
// internal mutex on segment bump; only the root map is guarded, by
// rootsMu.
type Heap struct {
	Index int

	cfg config.HeapConfig
	log gclog.Logger

	gen0, gen1, gen2, loh *Segment
	regions               []*Region
	segments              []*Segment // all of the above, sorted by Base()

	types map[uint64]*types.TypeDesc

	rootsMu sync.RWMutex
	roots   map[string]uintptr

	mutators []*Mutator
}

// New constructs a heap with four freshly reserved segments.
func New(index int, cfg config.HeapConfig, log gclog.Logger) (*Heap, error) {
	if log == nil {
		log = gclog.Root()
	}
	h := &Heap{
		Index: index,
		cfg:   cfg,
		log:   log.New("heap", index),
		types: make(map[uint64]*types.TypeDesc),
		roots: make(map[string]uintptr),
	}

	var err error
	if h.gen0, err = NewSegment(GenGen0, cfg.Gen0Size, cfg); err != nil {
		return nil, err
	}
	if h.gen1, err = NewSegment(GenGen1, cfg.Gen1Size, cfg); err != nil {
		return nil, err
	}
	if h.gen2, err = NewSegment(GenGen2, cfg.Gen2Size, cfg); err != nil {
		return nil, err
	}
	if h.loh, err = NewSegment(GenLoh, cfg.LohSize, cfg); err != nil {
		return nil, err
	}
	h.rebuildSegmentList()
	return h, nil
}

func (h *Heap) Config() config.HeapConfig { return h.cfg }
func (h *Heap) Gen0() *Segment            { return h.gen0 }
func (h *Heap) Gen1() *Segment            { return h.gen1 }
func (h *Heap) Gen2() *Segment            { return h.gen2 }
func (h *Heap) Loh() *Segment             { return h.loh }
func (h *Heap) Regions() []*Region        { return h.regions }

// Segments returns every segment owned by this heap, address-sorted.
func (h *Heap) Segments() []*Segment { return h.segments }

func (h *Heap) rebuildSegmentList() {
	segs := make([]*Segment, 0, 4+len(h.regions))
	segs = append(segs, h.gen0, h.gen1, h.gen2, h.loh)
	for _, r := range h.regions {
		segs = append(segs, r.segment)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Base() < segs[j].Base() })
	h.segments = segs
}

// ContainsAddress finds the segment owning addr in O(log n) via binary
// search over the address-sorted segment list.
func (h *Heap) ContainsAddress(addr uintptr) (*Segment, bool) {
	segs := h.segments
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Base() > addr })
	if i == 0 {
		return nil, false
	}
	seg := segs[i-1]
	if seg.Contains(addr) {
		return seg, true
	}
	return nil, false
}

// RegisterType computes t's layout (if not already laid out) and adds
// it to this heap's type table, keyed by TypeID. Broadcasting one
// descriptor to every heap in a runtime is gcrt's job.
func (h *Heap) RegisterType(t *types.TypeDesc) error {
	if t == nil || t.TypeID == 0 {
		return gcerr.BadArgument("registerType", "type must have a non-zero TypeID")
	}
	if err := types.ComputeLayout(t); err != nil {
		return err
	}
	h.types[t.TypeID] = t
	return nil
}

// TypeByID looks up a previously registered type.
func (h *Heap) TypeByID(id uint64) (*types.TypeDesc, bool) {
	t, ok := h.types[id]
	return t, ok
}

// SetRoot installs or overwrites a named root reference.
func (h *Heap) SetRoot(name string, addr uintptr) error {
	if name == "" {
		return gcerr.BadArgument("setRoot", "empty root name")
	}
	h.rootsMu.Lock()
	h.roots[name] = addr
	h.rootsMu.Unlock()
	return nil
}

// Root returns a named root's current value.
func (h *Heap) Root(name string) (uintptr, bool) {
	h.rootsMu.RLock()
	defer h.rootsMu.RUnlock()
	addr, ok := h.roots[name]
	return addr, ok
}

// Roots returns a snapshot of the root set.
func (h *Heap) Roots() map[string]uintptr {
	h.rootsMu.RLock()
	defer h.rootsMu.RUnlock()
	out := make(map[string]uintptr, len(h.roots))
	for k, v := range h.roots {
		out[k] = v
	}
	return out
}

// NewMutator creates a fresh mutator view onto this heap, with its own
// private TLH. The runtime creates one per logical thread affined to
// this heap.
func (h *Heap) NewMutator() *Mutator {
	m := &Mutator{heap: h}
	h.mutators = append(h.mutators, m)
	return m
}

// Mutators returns every mutator ever created against this heap — used
// by the collector to invalidate every TLH after a GC.
func (h *Heap) Mutators() []*Mutator { return h.mutators }

func (h *Heap) typeLookup(id uint64) (*types.TypeDesc, bool) { return h.TypeByID(id) }

// AddRegion creates and registers a new non-moving region of the given
// size against this heap.
func (h *Heap) AddRegion(size uintptr) (*Region, error) {
	seg, err := NewSegment(GenRegion, size, h.cfg)
	if err != nil {
		return nil, err
	}
	r := &Region{segment: seg, heap: h, externalRoots: make(map[uintptr]struct{})}
	h.regions = append(h.regions, r)
	h.rebuildSegmentList()
	return r, nil
}

// removeRegion detaches r from this heap's segment list. Called from
// Region.Destroy.
func (h *Heap) removeRegion(r *Region) {
	for i, cand := range h.regions {
		if cand == r {
			h.regions = append(h.regions[:i], h.regions[i+1:]...)
			break
		}
	}
	h.rebuildSegmentList()
}
