package units

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompactUnitArray_CopyMatchesSource(t *testing.T) {
	t.Parallel()
	src := sampleArray()
	src.SetNull(3)

	c := NewCompactCopy(src)
	requireSameUnits(t, src, c)
	require.Same(t, src.ValueMapping(), c.ValueMapping())
}

func TestCompactUnitArray_DedupRedirect(t *testing.T) {
	t.Parallel()
	a := NewCompactUnitArray(0, 100, 100, 100)
	// Many repeats of two distinct units plus one singleton.
	for i := 0; i < 50; i++ {
		a.Add(Unit{ValueCode: 5, WordEnd: true, DataCode: 1})
		a.Add(Unit{ValueCode: 6, Distance: 2, WordContinued: true})
	}
	a.Add(Unit{ValueCode: 7, WordEnd: true})

	before := a.AllocationSize()
	a.Compact()

	require.True(t, a.IsCompacted())
	require.Equal(t, 101, a.Size())
	require.Less(t, a.AllocationSize(), before)

	// Logical positions still resolve to the right units.
	for i := 0; i < 100; i += 2 {
		require.Equal(t, 5, a.ValueCode(i))
		require.Equal(t, 6, a.ValueCode(i+1))
		require.Equal(t, 2, a.Distance(i+1))
	}
	require.Equal(t, 7, a.ValueCode(100))

	// Identical logical units share a physical slot.
	require.Equal(t, a.FastIndex(0), a.FastIndex(98))
	require.NotEqual(t, a.FastIndex(0), a.FastIndex(1))
}

func TestCompactUnitArray_MutationAfterCompactPanics(t *testing.T) {
	t.Parallel()
	a := NewCompactCopy(sampleArray())
	a.Compact()

	require.PanicsWithValue(t, "units: array is compact", func() { a.Add(Unit{ValueCode: 1}) })
	require.PanicsWithValue(t, "units: array is compact", func() { a.Set(0, Unit{ValueCode: 1}) })
	require.PanicsWithValue(t, "units: array is compact", func() { a.MoveAbsolutePointers(1) })
}

func TestCompactUnitArray_WriteRead(t *testing.T) {
	t.Parallel()
	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	src := NewFastUnitArray(0)
	src.ValueMapping().Register('x')
	src.ValueMapping().Register('y')
	for i := 0; i < 400; i++ {
		src.Add(Unit{
			ValueCode:     r.Intn(3),
			Distance:      r.Intn(16),
			DataCode:      r.Intn(8),
			WordEnd:       r.Intn(2) == 1,
			WordContinued: r.Intn(2) == 1,
		})
	}

	a := NewCompactCopy(src)
	a.Compact()

	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))

	got, err := ReadCompactUnitArray(&buf)
	require.NoError(t, err)
	require.True(t, got.IsCompacted())
	require.Equal(t, a.AllocationSize(), got.AllocationSize(), "seed %d", seed)
	requireSameUnits(t, a, got)
}

func TestCompactUnitArray_ReadRejectsBadVersion(t *testing.T) {
	t.Parallel()
	a := NewCompactCopy(sampleArray())

	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))
	data := buf.Bytes()
	data[0] = 9 // abstract unit-array header version

	_, err := ReadCompactUnitArray(bytes.NewReader(data))
	require.Error(t, err)
}
