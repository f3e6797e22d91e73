package gcrt

import "sync"

// Affinity implements thread→heap mapping: a thread's home heap is
// `cpuID mod heapCount`, computed once and cached for the lifetime of
// that thread. Go has no portable notion of "current
// thread" or "current CPU" exposed to user code, so callers supply a
// stable threadID (e.g. a goroutine-scoped worker id) and a cpuID
// (e.g. from a round-robin counter or an external affinity hint); the
// cache keeps repeated calls for the same threadID free of recompute.
type Affinity struct {
	heapCount int

	mu    sync.Mutex
	cache map[int64]int
}

// NewAffinity builds an affinity mapper for a runtime with heapCount
// heaps.
func NewAffinity(heapCount int) *Affinity {
	return &Affinity{heapCount: heapCount, cache: make(map[int64]int)}
}

// HomeHeap returns threadID's home heap index, computing and caching
// it from cpuID on first use.
func (a *Affinity) HomeHeap(threadID, cpuID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx, ok := a.cache[threadID]; ok {
		return idx
	}
	idx := int(cpuID % int64(a.heapCount))
	if idx < 0 {
		idx += a.heapCount
	}
	a.cache[threadID] = idx
	return idx
}

// Forget drops a cached thread→heap mapping, e.g. once a worker exits.
func (a *Affinity) Forget(threadID int64) {
	a.mu.Lock()
	delete(a.cache, threadID)
	a.mu.Unlock()
}
