package heap

import (
	"testing"

	"github.com/EvheniyHlushko/GenerationalGC/config"
	"github.com/stretchr/testify/require"
)

func TestNewSegmentGen0HasNoCardsOrBricks(t *testing.T) {
	cfg := config.DefaultHeapConfig()
	seg, err := NewSegment(GenGen0, cfg.Gen0Size, cfg)
	require.NoError(t, err)
	require.Nil(t, seg.Cards())
	require.Nil(t, seg.Bricks())
}

func TestNewSegmentGen1HasCardsAndBricks(t *testing.T) {
	cfg := config.DefaultHeapConfig()
	seg, err := NewSegment(GenGen1, cfg.Gen1Size, cfg)
	require.NoError(t, err)
	require.NotNil(t, seg.Cards())
	require.NotNil(t, seg.Bricks())
}

func TestSegmentTryAllocateAdvancesAndAligns(t *testing.T) {
	cfg := config.DefaultHeapConfig()
	seg, err := NewSegment(GenGen1, 4096, cfg)
	require.NoError(t, err)

	off, ok := seg.TryAllocate(5)
	require.True(t, ok)
	require.EqualValues(t, 0, off)
	require.EqualValues(t, 8, seg.AllocatedBytes())

	off2, ok := seg.TryAllocate(8)
	require.True(t, ok)
	require.EqualValues(t, 8, off2)
}

func TestSegmentTryAllocateFailsWhenFull(t *testing.T) {
	cfg := config.DefaultHeapConfig()
	seg, err := NewSegment(GenGen1, 16, cfg)
	require.NoError(t, err)

	_, ok := seg.TryAllocate(16)
	require.True(t, ok)
	_, ok = seg.TryAllocate(1)
	require.False(t, ok)
}

func TestSegmentContains(t *testing.T) {
	cfg := config.DefaultHeapConfig()
	seg, err := NewSegment(GenGen1, 4096, cfg)
	require.NoError(t, err)

	require.True(t, seg.Contains(seg.Base()))
	require.True(t, seg.Contains(seg.Base()+seg.Size()-1))
	require.False(t, seg.Contains(seg.Base()+seg.Size()))
	require.False(t, seg.Contains(seg.Base()-1))
}

func TestSegmentResetNurseryLayoutClearsEverything(t *testing.T) {
	cfg := config.DefaultHeapConfig()
	seg, err := NewSegment(GenGen1, 4096, cfg)
	require.NoError(t, err)

	off, ok := seg.TryAllocate(64)
	require.True(t, ok)
	seg.Buffer().WriteHeader(off, 7)
	seg.Cards().MarkDirtyByOffset(off)
	seg.Bricks().OnAllocation(off)

	seg.ResetNurseryLayout()
	require.EqualValues(t, 0, seg.AllocatedBytes())
	require.Equal(t, 0, seg.Cards().DirtyCount())
	require.EqualValues(t, 0, seg.Bricks().SnapToObjectStart(off))
}
