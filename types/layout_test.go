package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeLayoutSmallStruct(t *testing.T) {
	// struct { Int32 X; Int32 Y; Long Z } -> Size 16
	td := &TypeDesc{
		Kind: KindStruct,
		Fields: []FieldDesc{
			{Name: "X", Kind: Int32Field},
			{Name: "Y", Kind: Int32Field},
			{Name: "Z", Kind: LongField},
		},
	}
	require.NoError(t, ComputeLayout(td))

	x, _ := td.FieldByName("X")
	y, _ := td.FieldByName("Y")
	z, _ := td.FieldByName("Z")
	require.EqualValues(t, 0, x.Offset)
	require.EqualValues(t, 4, y.Offset)
	require.EqualValues(t, 8, z.Offset)
	require.EqualValues(t, 16, td.Size)
}

func TestComputeLayoutTrailingPadding(t *testing.T) {
	// struct { Int32 X; Long Y; Int32 Z } -> Size 24 (padded to align 8)
	td := &TypeDesc{
		Kind: KindStruct,
		Fields: []FieldDesc{
			{Name: "X", Kind: Int32Field},
			{Name: "Y", Kind: LongField},
			{Name: "Z", Kind: Int32Field},
		},
	}
	require.NoError(t, ComputeLayout(td))

	x, _ := td.FieldByName("X")
	y, _ := td.FieldByName("Y")
	z, _ := td.FieldByName("Z")
	require.EqualValues(t, 0, x.Offset)
	require.EqualValues(t, 8, y.Offset)
	require.EqualValues(t, 16, z.Offset)
	require.EqualValues(t, 24, td.Size)
	require.EqualValues(t, 8, td.Align)
}

func TestComputeLayoutIsIdempotent(t *testing.T) {
	td := &TypeDesc{
		Kind:   KindClass,
		Fields: []FieldDesc{{Name: "A", Kind: RefField}, {Name: "B", Kind: Int32Field}},
	}
	require.NoError(t, ComputeLayout(td))
	want := *td

	require.NoError(t, ComputeLayout(td))
	require.Equal(t, want.Size, td.Size)
	require.Equal(t, want.Fields, td.Fields)
}

func TestComputeLayoutClassNotPadded(t *testing.T) {
	// A Class's total size is the raw cursor, unlike a Struct's.
	td := &TypeDesc{
		Kind: KindClass,
		Fields: []FieldDesc{
			{Name: "X", Kind: Int32Field},
			{Name: "Y", Kind: LongField},
			{Name: "Z", Kind: Int32Field},
		},
	}
	require.NoError(t, ComputeLayout(td))
	require.EqualValues(t, 20, td.Size)
}

func TestComputeLayoutEmptyStruct(t *testing.T) {
	td := &TypeDesc{Kind: KindStruct}
	require.NoError(t, ComputeLayout(td))
	require.EqualValues(t, 1, td.Size)
	require.EqualValues(t, 1, td.Align)
}

func TestComputeLayoutDecimalAlign(t *testing.T) {
	td := &TypeDesc{
		Kind: KindClass,
		Fields: []FieldDesc{
			{Name: "A", Kind: Int32Field},
			{Name: "D", Kind: DecimalField},
		},
	}
	require.NoError(t, ComputeLayout(td))
	d, _ := td.FieldByName("D")
	require.EqualValues(t, 4, d.Offset) // Decimal aligns to 4, not 8/16
	require.EqualValues(t, 16, d.Size)
	require.EqualValues(t, 20, td.Size)
}

func TestComputeLayoutNestedStruct(t *testing.T) {
	inner := &TypeDesc{
		Kind:   KindStruct,
		Fields: []FieldDesc{{Name: "A", Kind: Int32Field}, {Name: "B", Kind: RefField}},
	}
	outer := &TypeDesc{
		Kind: KindClass,
		Fields: []FieldDesc{
			{Name: "Head", Kind: Int32Field},
			{Name: "Loc", Kind: StructField, Nested: inner},
		},
	}
	require.NoError(t, ComputeLayout(outer))
	require.True(t, inner.laidOut)

	loc, _ := outer.FieldByName("Loc")
	require.Equal(t, inner.Size, loc.Size)
	require.Equal(t, inner.Align, loc.Align)
}

func TestComputeLayoutRejectsBadInput(t *testing.T) {
	require.Error(t, ComputeLayout(nil))
	require.Error(t, ComputeLayout(&TypeDesc{Kind: KindClass, Fields: []FieldDesc{{Name: "Bad", Kind: StructField}}}))
}
