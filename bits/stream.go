package bits

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidFormat is returned when a version byte read from a stream does not
// match the expected format version.
var ErrInvalidFormat = errors.New("invalid file format")

// The on-disk integer layout (all values are BigEndian):
//
//   v in [0, 126)      -> 1 byte: v
//   v in [126, 32767)  -> 1 byte marker 126, then int16
//   everything else    -> 1 byte marker 127, then int32
//
// Sizes and counts are small in almost every dictionary, so the 1-byte form
// dominates on disk.
const (
	int16Marker = 126
	int32Marker = 127
)

// WriteInt writes v using the variable-length integer layout.
func WriteInt(w io.Writer, v int) error {
	switch {
	case v >= 0 && v < int16Marker:
		_, err := w.Write([]byte{byte(v)})
		return err
	case v >= 0 && v < 32767:
		if _, err := w.Write([]byte{int16Marker}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, int16(v))
	default:
		if _, err := w.Write([]byte{int32Marker}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, int32(v))
	}
}

// ReadInt reads an integer written by WriteInt.
func ReadInt(r io.Reader) (int, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	switch b[0] {
	case int16Marker:
		var v int16
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, err
		}
		return int(v), nil
	case int32Marker:
		var v int32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, err
		}
		return int(v), nil
	default:
		return int(b[0]), nil
	}
}

// WriteUint64 writes v as 8 raw BigEndian bytes.
func WriteUint64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadUint64 reads 8 raw BigEndian bytes.
func ReadUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// WriteByte writes a single byte.
func WriteByte(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadByte reads a single byte.
func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

// WriteBool writes b as a single 0/1 byte.
func WriteBool(w io.Writer, b bool) error {
	v := byte(0)
	if b {
		v = 1
	}
	return WriteByte(w, v)
}

// ReadBool reads a single 0/1 byte.
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadByte(r)
	return b != 0, err
}

// CheckVersion reads one byte and verifies it against want.
func CheckVersion(r io.Reader, want byte, what string) error {
	got, err := ReadByte(r)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if got != want {
		return fmt.Errorf("%s: version %d, want %d: %w", what, got, want, ErrInvalidFormat)
	}
	return nil
}

func writeWords(w io.Writer, words []uint64) error {
	if err := WriteInt(w, len(words)); err != nil {
		return err
	}
	for _, v := range words {
		if err := WriteUint64(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readWords(r io.Reader) ([]uint64, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("word count %d: %w", n, ErrInvalidFormat)
	}
	words := make([]uint64, n)
	for i := range words {
		if words[i], err = ReadUint64(r); err != nil {
			return nil, err
		}
	}
	return words, nil
}
