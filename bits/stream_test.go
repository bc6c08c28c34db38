package bits

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadInt_Boundaries(t *testing.T) {
	t.Parallel()
	for _, v := range []int{0, 1, 125, 126, 127, 128, 32766, 32767, 1 << 20, 1<<31 - 1, -1, -40000} {
		var buf bytes.Buffer
		require.NoError(t, WriteInt(&buf, v))

		got, err := ReadInt(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestWriteReadInt_SingleByteForSmallValues(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteInt(&buf, 125))
	require.Equal(t, 1, buf.Len())

	buf.Reset()
	require.NoError(t, WriteInt(&buf, 126))
	require.Equal(t, 3, buf.Len())
}

func TestCheckVersion(t *testing.T) {
	t.Parallel()
	require.NoError(t, CheckVersion(bytes.NewReader([]byte{3}), 3, "unit array"))

	err := CheckVersion(bytes.NewReader([]byte{7}), 3, "unit array")
	require.ErrorIs(t, err, ErrInvalidFormat)
}
