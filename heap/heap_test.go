package heap

import (
	"testing"

	"github.com/EvheniyHlushko/GenerationalGC/config"
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/gclog"
	"github.com/EvheniyHlushko/GenerationalGC/types"
	"github.com/stretchr/testify/require"
)

// nodeType is a small self-referential Class used across these tests:
// an Int32 payload and a Ref to another Node (e.g. a linked list cell).
func nodeType(id uint64) *types.TypeDesc {
	return &types.TypeDesc{
		TypeID: id,
		Kind:   types.KindClass,
		Name:   "Node",
		Fields: []types.FieldDesc{
			{Name: "Val", Kind: types.Int32Field},
			{Name: "Next", Kind: types.RefField},
		},
	}
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	cfg := config.DefaultHeapConfig()
	cfg.Gen0Size = 4096
	cfg.Gen1Size = 4096
	cfg.Gen2Size = 4096
	cfg.LohSize = 4096
	cfg.TLHSlabBytes = 256
	h, err := New(0, cfg, gclog.Root())
	require.NoError(t, err)
	require.NoError(t, h.RegisterType(nodeType(1)))
	return h
}

func TestContainsAddressBinarySearch(t *testing.T) {
	h := newTestHeap(t)
	seg, ok := h.ContainsAddress(h.Gen0().Base())
	require.True(t, ok)
	require.Same(t, h.Gen0(), seg)

	seg, ok = h.ContainsAddress(h.Gen2().Base() + 10)
	require.True(t, ok)
	require.Same(t, h.Gen2(), seg)

	_, ok = h.ContainsAddress(^uintptr(0))
	require.False(t, ok)
}

func TestAllocGen0ViaMutator(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	addr, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)
	require.True(t, h.Gen0().Contains(addr))
}

func TestAllocForcedGen1BumpsDirect(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	addr, err := h.Alloc(m, nt, GenGen1, true, nil)
	require.NoError(t, err)
	require.True(t, h.Gen1().Contains(addr))
	require.EqualValues(t, addr-h.Gen1().Base(), h.Gen1().Bricks().SnapToObjectStart(addr-h.Gen1().Base()))
}

// a write from an old generation into a possibly-young
// child dirties the card covering the write.
func TestWriteBarrierDirtiesCardOnOldToYoungWrite(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	parent, err := h.Alloc(m, nt, GenGen1, true, nil)
	require.NoError(t, err)
	child, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)

	require.Equal(t, 0, h.Gen1().Cards().DirtyCount())
	require.NoError(t, h.WriteRef(parent, FieldPath{Field: "Next"}, child, h))
	require.Equal(t, 1, h.Gen1().Cards().DirtyCount())

	got, err := h.ReadRef(parent, FieldPath{Field: "Next"})
	require.NoError(t, err)
	require.Equal(t, child, got)
}

func TestWriteBarrierNoCardDirtyWhenChildIsOld(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	parent, err := h.Alloc(m, nt, GenGen1, true, nil)
	require.NoError(t, err)
	child, err := h.Alloc(m, nt, GenGen2, true, nil)
	require.NoError(t, err)

	require.NoError(t, h.WriteRef(parent, FieldPath{Field: "Next"}, child, h))
	require.Equal(t, 0, h.Gen1().Cards().DirtyCount())
}

func TestWriteBarrierRejectsManagedToRegionEdge(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	r, err := h.AddRegion(512)
	require.NoError(t, err)
	regionAddr, ok := r.Segment().TryAllocate(8)
	require.True(t, ok)

	parent, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)
	err = h.WriteRef(parent, FieldPath{Field: "Next"}, r.Segment().Base()+regionAddr, h)
	require.ErrorIs(t, err, gcerr.ErrBadReferenceEdge)
}

// a local minor GC promotes a reachable Gen0 object into
// Gen1 and fixes up every reference that pointed at its old address.
func TestCollectEphemeralAllPromotesReachableObjects(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	child, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)
	parent, err := h.Alloc(m, nt, GenGen1, true, nil)
	require.NoError(t, err)
	require.NoError(t, h.WriteRef(parent, FieldPath{Field: "Next"}, child, h))

	require.NoError(t, h.SetRoot("parent", parent))

	require.NoError(t, h.CollectEphemeralAll())

	newChild, err := h.ReadRef(parent, FieldPath{Field: "Next"})
	require.NoError(t, err)
	require.NotZero(t, newChild)
	require.True(t, h.Gen1().Contains(newChild))
	require.EqualValues(t, 0, h.Gen0().AllocatedBytes())
}

// MarkEphemeralAll must not move anything or shrink the
// dirty card count, unlike CollectEphemeralAll.
func TestMarkEphemeralAllIsNonDestructive(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	child, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)
	parent, err := h.Alloc(m, nt, GenGen1, true, nil)
	require.NoError(t, err)
	require.NoError(t, h.WriteRef(parent, FieldPath{Field: "Next"}, child, h))
	require.NoError(t, h.SetRoot("parent", parent))

	before := h.Gen0().AllocatedBytes()
	beforeDirty := h.Gen1().Cards().DirtyCount()

	require.NoError(t, h.MarkEphemeralAll())

	require.Equal(t, before, h.Gen0().AllocatedBytes())
	require.Equal(t, beforeDirty, h.Gen1().Cards().DirtyCount())

	got, err := h.ReadRef(parent, FieldPath{Field: "Next"})
	require.NoError(t, err)
	require.Equal(t, child, got) // unmoved
}

func TestRegionExternalRootSeedsSurvivor(t *testing.T) {
	h := newTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	child, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)

	r, err := h.AddRegion(512)
	require.NoError(t, err)
	regionAddr, err := h.AllocInRegion(r, nt)
	require.NoError(t, err)

	require.NoError(t, h.WriteRef(regionAddr, FieldPath{Field: "Next"}, child, h))
	require.NoError(t, h.CollectEphemeralAll())

	roots := r.ExternalRoots()
	require.Len(t, roots, 1)
	require.True(t, h.Gen1().Contains(roots[0]))
}
