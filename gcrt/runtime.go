// Package gcrt composes many heap.Heap instances into a multi-heap
// runtime: thread→heap affinity, a broadcast type table, the global
// address directory, and the parallel work-stealing minor-GC driver.
// heap carries everything that is scoped to one heap; this package is
// everything that needs to see all of them at once.
package gcrt

import (
	"sync"

	"github.com/EvheniyHlushko/GenerationalGC/config"
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/gclog"
	"github.com/EvheniyHlushko/GenerationalGC/heap"
	"github.com/EvheniyHlushko/GenerationalGC/types"
)

// Runtime owns an ordered vector of heaps, a thread→heap affinity
// mapper, and a monotonic TypeId issuer.
type Runtime struct {
	cfg config.HeapConfig
	log gclog.Logger

	heaps    []*heap.Heap
	affinity *Affinity

	typesMu    sync.Mutex
	nextTypeID uint64

	mutatorsMu sync.Mutex
	mutators   map[int64]*heap.Mutator
}

// New constructs cfg.HeapCount heaps, each wired with an independent
// set of Gen0/Gen1/Gen2/Loh segments.
func New(cfg config.HeapConfig, log gclog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = gclog.Root()
	}
	rt := &Runtime{
		cfg:        cfg,
		log:        log.New("component", "runtime"),
		affinity:   NewAffinity(cfg.HeapCount),
		nextTypeID: 1,
	}
	for i := 0; i < cfg.HeapCount; i++ {
		h, err := heap.New(i, cfg, log)
		if err != nil {
			return nil, err
		}
		rt.heaps = append(rt.heaps, h)
	}
	return rt, nil
}

// Heaps returns every heap owned by this runtime, index-ordered.
func (rt *Runtime) Heaps() []*heap.Heap { return rt.heaps }

// HeapCount reports how many heaps this runtime owns.
func (rt *Runtime) HeapCount() int { return len(rt.heaps) }

// HomeHeap resolves threadID's home heap via affinity, caching the
// mapping for the thread's lifetime.
func (rt *Runtime) HomeHeap(threadID, cpuID int64) *heap.Heap {
	return rt.heaps[rt.affinity.HomeHeap(threadID, cpuID)]
}

// RegisterType assigns t a TypeId if it has none, computes its layout
// once, and broadcasts the now-shared descriptor to every heap's type
// table.
func (rt *Runtime) RegisterType(t *types.TypeDesc) error {
	if t == nil {
		return gcerr.BadArgument("registerType", "nil type")
	}
	if t.TypeID == 0 {
		rt.typesMu.Lock()
		t.TypeID = rt.nextTypeID
		rt.nextTypeID++
		rt.typesMu.Unlock()
	}
	for _, h := range rt.heaps {
		if err := h.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

// Directory rebuilds the address→(heap, segment) resolver over every
// heap's current segment list. Call it after adding or destroying a
// region, and always immediately before a collection.
func (rt *Runtime) Directory() *Directory {
	return BuildDirectory(rt.heaps)
}

// Release tears the runtime down, returning every segment's buffer to
// the OS.
func (rt *Runtime) Release() error {
	var first error
	for _, h := range rt.heaps {
		for _, seg := range h.Segments() {
			if err := seg.Release(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
