package units

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleArray() *FastUnitArray {
	a := NewFastUnitArray(8)
	m := a.ValueMapping()
	for _, s := range []int32{'a', 'b', 'c'} {
		m.Register(s)
	}
	a.Add(Unit{ValueCode: RootValueCode, WordContinued: true})
	a.Add(Unit{ValueCode: 1, Distance: 2, WordContinued: true})
	a.Add(Unit{ValueCode: 2, WordEnd: true, DataCode: 7})
	a.Add(Unit{ValueCode: 3, WordEnd: true, WordContinued: true})
	a.Add(Unit{ValueCode: 1, WordEnd: true, DataCode: 9})
	return a
}

func TestFastUnitArray_GetSet(t *testing.T) {
	t.Parallel()
	a := sampleArray()
	require.Equal(t, 5, a.Size())

	u, ok := a.Get(1)
	require.True(t, ok)
	require.Equal(t, Unit{ValueCode: 1, Distance: 2, WordContinued: true}, u)
	require.Equal(t, int32('a'), a.Value(1))
	require.True(t, a.IsWordEnd(2))
	require.False(t, a.IsWordContinued(2))
	require.Equal(t, 7, a.DataCode(2))

	require.Panics(t, func() { a.Get(5) })
	require.Panics(t, func() { a.Get(-1) })
}

func TestFastUnitArray_NullSentinel(t *testing.T) {
	t.Parallel()
	a := sampleArray()
	a.SetNull(3)

	require.True(t, a.IsNull(3))
	require.False(t, a.IsAbsolutePointer(3))
	require.Equal(t, 3, a.Distance(3))
	_, ok := a.Get(3)
	require.False(t, ok)
}

func TestFastUnitArray_AbsolutePointer(t *testing.T) {
	t.Parallel()
	a := sampleArray()
	a.Set(3, Unit{ValueCode: 2, Distance: 1})

	require.True(t, a.IsAbsolutePointer(3))
	require.False(t, a.IsNull(3))
	require.Equal(t, 1, a.Distance(3))

	a.MoveAbsolutePointers(10)
	require.Equal(t, 11, a.Distance(3))
	// Ordinary units and nulls are untouched.
	require.Equal(t, 2, a.Distance(1))
}

func TestFastUnitArray_CompareUnits(t *testing.T) {
	t.Parallel()
	a := NewFastUnitArray(8)
	a.Add(Unit{ValueCode: 1})                             // 0: pointer-ish key 4
	a.Add(Unit{ValueCode: 1, WordContinued: true})        // 1: key 5
	a.Add(Unit{ValueCode: 1, WordEnd: true})              // 2: key 6
	a.Add(Unit{ValueCode: 2})                             // 3: key 8
	a.Add(Unit{ValueCode: 1, WordEnd: true, DataCode: 3}) // 4: key 6, data tiebreak
	a.Add(Unit{ValueCode: 1, Distance: 4})                // 5: key 4, distance tiebreak

	require.Negative(t, a.CompareUnits(0, 1))
	require.Negative(t, a.CompareUnits(1, 2))
	require.Negative(t, a.CompareUnits(2, 3))
	require.Negative(t, a.CompareUnits(2, 4))
	require.Negative(t, a.CompareUnits(0, 5))
	require.Zero(t, a.CompareUnits(2, 2))
	require.Positive(t, a.CompareUnits(3, 4))
}

func TestFastUnitArray_SubArraySharesMapping(t *testing.T) {
	t.Parallel()
	a := sampleArray()
	sub := a.SubArray(1, 4)

	require.Equal(t, 3, sub.Size())
	require.Same(t, a.ValueMapping(), sub.ValueMapping())
	u, ok := sub.Get(0)
	require.True(t, ok)
	require.Equal(t, 1, u.ValueCode)
}

func TestFastUnitArray_AddAllKeepsNulls(t *testing.T) {
	t.Parallel()
	src := sampleArray()
	src.SetNull(2)

	dst := NewFastUnitArray(0)
	dst.Add(Unit{ValueCode: RootValueCode, WordContinued: true})
	dst.AddAll(src)

	require.Equal(t, 6, dst.Size())
	require.True(t, dst.IsNull(3))
	require.Equal(t, 3, dst.Distance(3))
}

func TestFastUnitArray_WriteRead(t *testing.T) {
	t.Parallel()
	a := sampleArray()
	a.SetNull(4)

	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))

	got, err := ReadFastUnitArray(&buf)
	require.NoError(t, err)
	requireSameUnits(t, a, got)
	require.Equal(t, a.ValueMapping().Len(), got.ValueMapping().Len())
	require.Equal(t, a.MapToValueCode('b'), got.MapToValueCode('b'))
}

func requireSameUnits(t *testing.T, want, got UnitArray) {
	t.Helper()
	require.Equal(t, want.Size(), got.Size())
	for i := 0; i < want.Size(); i++ {
		wu, wok := want.Get(i)
		gu, gok := got.Get(i)
		require.Equal(t, wok, gok, "null mismatch at %d", i)
		require.Equal(t, wu, gu, "unit mismatch at %d", i)
	}
}
