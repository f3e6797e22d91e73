package gcrt

import "sync"

// VisitedSet is the global, CAS-only mark set: only insert-if-absent
// is ever used. sync.Map's LoadOrStore is exactly that primitive, so
// it needs no hand-rolled atomic bitset.
type VisitedSet struct {
	m sync.Map
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet { return &VisitedSet{} }

// TryMark reports whether addr was not already present, and marks it
// present either way. This is the mark-first linearization point: at
// most one caller ever observes true for a given addr.
func (v *VisitedSet) TryMark(addr uintptr) bool {
	_, loaded := v.m.LoadOrStore(addr, struct{}{})
	return !loaded
}

// Contains reports whether addr has been marked.
func (v *VisitedSet) Contains(addr uintptr) bool {
	_, ok := v.m.Load(addr)
	return ok
}

// Keys snapshots every marked address.
func (v *VisitedSet) Keys() []uintptr {
	var out []uintptr
	v.m.Range(func(k, _ interface{}) bool {
		out = append(out, k.(uintptr))
		return true
	})
	return out
}
