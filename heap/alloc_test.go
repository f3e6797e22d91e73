package heap

import (
	"testing"

	"github.com/EvheniyHlushko/GenerationalGC/config"
	"github.com/EvheniyHlushko/GenerationalGC/gcerr"
	"github.com/EvheniyHlushko/GenerationalGC/gclog"
	"github.com/stretchr/testify/require"
)

// newOOMTestHeap sizes Gen0 to fit exactly one object, so a second
// allocation always finds Gen0 full on the first try.
func newOOMTestHeap(t *testing.T) *Heap {
	t.Helper()
	cfg := config.DefaultHeapConfig()
	cfg.Gen0Size = 32
	cfg.Gen1Size = 4096
	cfg.Gen2Size = 4096
	cfg.LohSize = 4096
	cfg.TLHSlabBytes = 32
	h, err := New(0, cfg, gclog.Root())
	require.NoError(t, err)
	require.NoError(t, h.RegisterType(nodeType(1)))
	return h
}

func TestEnsureTLHRetriesOnceAfterOnOutOfSpaceFreesRoom(t *testing.T) {
	h := newOOMTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	_, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)
	require.Equal(t, h.Gen0().Size(), h.Gen0().AllocatedBytes())

	invoked := false
	onOutOfSpace := func() error {
		invoked = true
		return h.CollectEphemeralAll()
	}

	addr, err := h.Alloc(m, nt, 0, false, onOutOfSpace)
	require.NoError(t, err)
	require.True(t, invoked, "onOutOfSpace must run when Gen0 has no room for a new slab")
	require.True(t, h.Gen0().Contains(addr))
}

func TestEnsureTLHFailsWithOutOfMemoryWhenCallbackFreesNothing(t *testing.T) {
	h := newOOMTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	_, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)

	invoked := false
	onOutOfSpace := func() error {
		invoked = true
		return nil // keeps Gen0 full
	}

	_, err = h.Alloc(m, nt, 0, false, onOutOfSpace)
	require.True(t, invoked)
	require.Error(t, err)
	require.ErrorIs(t, err, gcerr.ErrOutOfMemory)
}

func TestEnsureTLHFailsWithOutOfMemoryWhenOnOutOfSpaceIsNil(t *testing.T) {
	h := newOOMTestHeap(t)
	m := h.NewMutator()
	nt, _ := h.TypeByID(1)

	_, err := h.Alloc(m, nt, 0, false, nil)
	require.NoError(t, err)

	_, err = h.Alloc(m, nt, 0, false, nil)
	require.ErrorIs(t, err, gcerr.ErrOutOfMemory)
}
