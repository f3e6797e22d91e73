package gcerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutOfMemoryWrapsSentinel(t *testing.T) {
	err := OutOfMemory("alloc", "gen0 full")
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.NotErrorIs(t, err, ErrInvalidReference)
	require.Contains(t, err.Error(), "alloc")
	require.Contains(t, err.Error(), "gen0 full")
}

func TestInvalidReferenceWrapsSentinel(t *testing.T) {
	err := InvalidReference("setRef", "address not owned by this heap")
	require.ErrorIs(t, err, ErrInvalidReference)
	require.NotErrorIs(t, err, ErrOutOfMemory)
}

func TestBadReferenceEdgeWrapsSentinel(t *testing.T) {
	err := BadReferenceEdge("setRef", "managed object may not reference a region")
	require.ErrorIs(t, err, ErrBadReferenceEdge)
	require.NotErrorIs(t, err, ErrBadArgument)
}

func TestBadArgumentWrapsSentinel(t *testing.T) {
	err := BadArgument("registerType", "nil type")
	require.ErrorIs(t, err, ErrBadArgument)
	require.NotErrorIs(t, err, ErrBadReferenceEdge)
}

func TestErrorUnwrapReturnsSentinelDirectly(t *testing.T) {
	err := OutOfMemory("alloc", "gen0 full")
	var gcErr *Error
	require.True(t, errors.As(err, &gcErr))
	require.Same(t, ErrOutOfMemory, gcErr.Unwrap())
}

func TestErrorMessageOmitsDetailWhenEmpty(t *testing.T) {
	err := &Error{Op: "alloc", Wrapped: ErrOutOfMemory}
	require.NotContains(t, err.Error(), ": :")
	require.Contains(t, err.Error(), "alloc")
	require.Contains(t, err.Error(), ErrOutOfMemory.Error())
}
