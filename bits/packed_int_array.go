package bits

import (
	"fmt"
	"io"
	math_bits "math/bits"
	"unsafe"
)

// packedIntArrayVersion is the on-disk format version of PackedIntArray.
const packedIntArrayVersion = 2

// PackedIntArray stores non-negative integers in a fixed number of bits each,
// chosen from the largest value the array is expected to hold. Storing a value
// beyond the current maximum re-encodes the whole backing at a wider width,
// which happens at most log2(max) times over the array's lifetime.
// Not safe for concurrent mutation.
type PackedIntArray struct {
	data         []uint64
	size         int
	bitsPerValue int
	maxValue     uint64 // mask for the current width
}

// NewPackedIntArray creates an array sized for capacity values no larger than
// maxValue. The logical size starts at zero.
func NewPackedIntArray(capacity int, maxValue int64) *PackedIntArray {
	if capacity < 0 {
		panic(fmt.Sprintf("bits: negative capacity %d", capacity))
	}
	if maxValue < 0 {
		panic(fmt.Sprintf("bits: negative value %d", maxValue))
	}
	w := math_bits.Len64(uint64(maxValue))
	if w == 0 {
		w = 1
	}
	return &PackedIntArray{
		data:         make([]uint64, wordsFor(capacity, w)),
		bitsPerValue: w,
		maxValue:     mask(w),
	}
}

func wordsFor(values, bitsPerValue int) int {
	return (values*bitsPerValue + wordBits - 1) / wordBits
}

func mask(bitsPerValue int) uint64 {
	if bitsPerValue >= wordBits {
		return ^uint64(0)
	}
	return uint64(1)<<bitsPerValue - 1
}

// Size returns the number of stored values.
func (p *PackedIntArray) Size() int {
	return p.size
}

// BitsPerValue returns the current encoding width.
func (p *PackedIntArray) BitsPerValue() int {
	return p.bitsPerValue
}

// MaxValue returns the largest value representable at the current width.
func (p *PackedIntArray) MaxValue() uint64 {
	return p.maxValue
}

// Get returns the value at index i. Panics when i is out of [0, Size()).
func (p *PackedIntArray) Get(i int) int64 {
	if i < 0 || i >= p.size {
		panic(fmt.Sprintf("bits: index %d out of range for packed array of size %d", i, p.size))
	}
	return int64(p.getRaw(i))
}

func (p *PackedIntArray) getRaw(i int) uint64 {
	bitPos := i * p.bitsPerValue
	word := bitPos / wordBits
	offset := uint(bitPos % wordBits)

	v := p.data[word] >> offset
	if avail := wordBits - int(offset); avail < p.bitsPerValue {
		v |= p.data[word+1] << uint(avail)
	}
	return v & p.maxValue
}

// Set stores v at index i, widening the encoding when v does not fit.
// Panics on a negative value or an index outside [0, Size()).
func (p *PackedIntArray) Set(i int, v int64) {
	if i < 0 || i >= p.size {
		panic(fmt.Sprintf("bits: index %d out of range for packed array of size %d", i, p.size))
	}
	if v < 0 {
		panic(fmt.Sprintf("bits: negative value %d", v))
	}
	if uint64(v) > p.maxValue {
		p.widen(uint64(v))
	}
	p.setRaw(i, uint64(v))
}

func (p *PackedIntArray) setRaw(i int, v uint64) {
	bitPos := i * p.bitsPerValue
	word := bitPos / wordBits
	offset := uint(bitPos % wordBits)

	p.data[word] &^= p.maxValue << offset
	p.data[word] |= v << offset
	if avail := wordBits - int(offset); avail < p.bitsPerValue {
		p.data[word+1] &^= p.maxValue >> uint(avail)
		p.data[word+1] |= v >> uint(avail)
	}
}

// widen re-encodes every stored value at the width needed for v.
func (p *PackedIntArray) widen(v uint64) {
	w := math_bits.Len64(v)
	widened := &PackedIntArray{
		data:         make([]uint64, wordsFor(maxInt(p.size, capValues(p)), w)),
		bitsPerValue: w,
		maxValue:     mask(w),
	}
	for i := 0; i < p.size; i++ {
		widened.setRaw(i, p.getRaw(i))
	}
	p.data = widened.data
	p.bitsPerValue = w
	p.maxValue = widened.maxValue
}

// capValues returns how many values the current backing can hold.
func capValues(p *PackedIntArray) int {
	if p.bitsPerValue == 0 {
		return 0
	}
	return len(p.data) * wordBits / p.bitsPerValue
}

// Add appends v, growing the backing geometrically. Panics on a negative value.
func (p *PackedIntArray) Add(v int64) {
	if v < 0 {
		panic(fmt.Sprintf("bits: negative value %d", v))
	}
	if uint64(v) > p.maxValue {
		p.widen(uint64(v))
	}
	if need := wordsFor(p.size+1, p.bitsPerValue); need > len(p.data) {
		newLen := len(p.data) * 2
		if newLen < need {
			newLen = need
		}
		grown := make([]uint64, newLen)
		copy(grown, p.data)
		p.data = grown
	}
	p.size++
	p.setRaw(p.size-1, uint64(v))
}

// Compact shrinks the backing storage to the minimum number of words needed
// for size values at the current width.
func (p *PackedIntArray) Compact() {
	need := wordsFor(p.size, p.bitsPerValue)
	if need == len(p.data) {
		return
	}
	shrunk := make([]uint64, need)
	copy(shrunk, p.data[:need])
	p.data = shrunk
}

// AllocationSize returns the resident size estimate in bytes.
func (p *PackedIntArray) AllocationSize() int {
	return len(p.data)*8 + int(unsafe.Sizeof(*p))
}

// Write serializes the array. Layout: version byte, width byte, max value,
// size, word count, raw words.
func (p *PackedIntArray) Write(w io.Writer) error {
	if err := WriteByte(w, packedIntArrayVersion); err != nil {
		return err
	}
	if err := WriteByte(w, byte(p.bitsPerValue)); err != nil {
		return err
	}
	if err := WriteUint64(w, p.maxValue); err != nil {
		return err
	}
	if err := WriteInt(w, p.size); err != nil {
		return err
	}
	return writeWords(w, p.data)
}

// ReadPackedIntArray deserializes an array written by Write.
func ReadPackedIntArray(r io.Reader) (*PackedIntArray, error) {
	if err := CheckVersion(r, packedIntArrayVersion, "packed int array"); err != nil {
		return nil, err
	}
	width, err := ReadByte(r)
	if err != nil {
		return nil, err
	}
	if width == 0 || int(width) > wordBits {
		return nil, fmt.Errorf("packed array width %d: %w", width, ErrInvalidFormat)
	}
	maxValue, err := ReadUint64(r)
	if err != nil {
		return nil, err
	}
	if maxValue != mask(int(width)) {
		return nil, fmt.Errorf("packed array max value %d does not match width %d: %w", maxValue, width, ErrInvalidFormat)
	}
	size, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("packed array size %d: %w", size, ErrInvalidFormat)
	}
	data, err := readWords(r)
	if err != nil {
		return nil, err
	}
	if len(data)*wordBits < size*int(width) {
		return nil, fmt.Errorf("packed array backing too short for size %d: %w", size, ErrInvalidFormat)
	}
	return &PackedIntArray{
		data:         data,
		size:         size,
		bitsPerValue: int(width),
		maxValue:     maxValue,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
