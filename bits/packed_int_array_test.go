package bits

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPackedIntArray_AddGet(t *testing.T) {
	t.Parallel()
	p := NewPackedIntArray(4, 100)
	require.Equal(t, 7, p.BitsPerValue())

	p.Add(0)
	p.Add(100)
	p.Add(42)

	require.Equal(t, 3, p.Size())
	require.Equal(t, int64(0), p.Get(0))
	require.Equal(t, int64(100), p.Get(1))
	require.Equal(t, int64(42), p.Get(2))
}

func TestPackedIntArray_WideningPreservesValues(t *testing.T) {
	t.Parallel()
	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	p := NewPackedIntArray(0, 7)
	ref := make([]int64, 500)
	for i := range ref {
		ref[i] = int64(r.Intn(8))
		p.Add(ref[i])
	}
	require.Equal(t, 3, p.BitsPerValue())

	// Force widening from 3 to 20 bits; every earlier value must survive.
	p.Set(250, 1<<19)
	ref[250] = 1 << 19
	require.Equal(t, 20, p.BitsPerValue())

	for i, v := range ref {
		require.Equal(t, v, p.Get(i), "index %d (seed %d)", i, seed)
	}
}

func TestPackedIntArray_SetGetLargeValues(t *testing.T) {
	t.Parallel()
	p := NewPackedIntArray(0, 1)
	p.Add(0)
	p.Add(1)

	v := int64(1)<<62 + 12345
	p.Set(1, v)
	require.Equal(t, v, p.Get(1))
	require.Equal(t, int64(0), p.Get(0))
}

func TestPackedIntArray_StraddlingWords(t *testing.T) {
	t.Parallel()
	// 13-bit values straddle the 64-bit word boundary every few entries.
	p := NewPackedIntArray(0, 8000)
	for i := 0; i < 200; i++ {
		p.Add(int64(i * 37 % 8000))
	}
	for i := 0; i < 200; i++ {
		require.Equal(t, int64(i*37%8000), p.Get(i))
	}
}

func TestPackedIntArray_NegativePanics(t *testing.T) {
	t.Parallel()
	p := NewPackedIntArray(2, 10)
	p.Add(1)
	require.Panics(t, func() { p.Add(-1) })
	require.Panics(t, func() { p.Set(0, -5) })
	require.Panics(t, func() { p.Get(1) })
}

func TestPackedIntArray_WriteRead(t *testing.T) {
	t.Parallel()
	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	p := NewPackedIntArray(0, 1<<20)
	for i := 0; i < 777; i++ {
		p.Add(int64(r.Intn(1 << 20)))
	}
	p.Compact()

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))

	got, err := ReadPackedIntArray(&buf)
	require.NoError(t, err)
	require.Equal(t, p.Size(), got.Size())
	require.Equal(t, p.BitsPerValue(), got.BitsPerValue())
	for i := 0; i < p.Size(); i++ {
		require.Equal(t, p.Get(i), got.Get(i), "index %d (seed %d)", i, seed)
	}
}

func TestPackedIntArray_ReadRejectsBadVersion(t *testing.T) {
	t.Parallel()
	p := NewPackedIntArray(0, 3)
	p.Add(2)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))
	data := buf.Bytes()
	data[0] = 99

	_, err := ReadPackedIntArray(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrInvalidFormat)
}
