package units

import (
	"fmt"
	"io"

	"lltrie/bits"
	"lltrie/utils"
)

const abstractVersion = 3

// UnitArray is the uniform accessor interface shared by the Fast and Compact
// representations. Indexes are logical positions; on a deduplicated Compact
// array FastIndex redirects a logical position to the physical slot holding
// its unit, and the *Fast accessors skip that redirect for hot loops.
type UnitArray interface {
	Size() int

	// Get returns the unit at i, or ok=false when the slot is a null sentinel.
	Get(i int) (u Unit, ok bool)
	Set(i int, u Unit)
	SetNull(i int)
	Add(u Unit)
	AddAll(other UnitArray)

	IsNull(i int) bool
	IsWordEnd(i int) bool
	IsWordContinued(i int) bool
	IsAbsolutePointer(i int) bool
	Distance(i int) int
	ValueCode(i int) int
	DataCode(i int) int
	// Value returns the mapped symbol of the unit's value code.
	Value(i int) int32

	EqualUnits(i, j int) bool
	CompareUnits(i, j int) int

	FastIndex(i int) int
	DistanceFast(fi int) int
	ValueCodeFast(fi int) int
	DataCodeFast(fi int) int
	IsWordEndFast(fi int) bool
	IsWordContinuedFast(fi int) bool

	// SubArray copies [start, end) into a new Fast array sharing the value
	// mapping.
	SubArray(start, end int) *FastUnitArray
	// MoveAbsolutePointers adds offset to the target of every absolute
	// pointer, for splicing a sub-array into another position.
	MoveAbsolutePointers(offset int)

	ValueMapping() *ValueMapping
	SetValueMapping(m *ValueMapping)
	// MapToValueCode returns the code of symbol, or -1 when unmapped.
	MapToValueCode(symbol int32) int

	TrimToSize()
	Dispose()
	AllocationSize() int
	MemDetailed() utils.MemReport

	Write(w io.Writer) error
}

func checkIndex(i, size int) {
	if i < 0 || i >= size {
		panic(fmt.Sprintf("units: index %d out of range for unit array of size %d", i, size))
	}
}

func writeAbstractHeader(w io.Writer, size int, m *ValueMapping) error {
	if err := bits.WriteByte(w, abstractVersion); err != nil {
		return err
	}
	if err := bits.WriteInt(w, size); err != nil {
		return err
	}
	return m.write(w)
}

func readAbstractHeader(r io.Reader) (int, *ValueMapping, error) {
	if err := bits.CheckVersion(r, abstractVersion, "unit array"); err != nil {
		return 0, nil, err
	}
	size, err := bits.ReadInt(r)
	if err != nil {
		return 0, nil, err
	}
	if size < 0 {
		return 0, nil, fmt.Errorf("unit array size %d: %w", size, bits.ErrInvalidFormat)
	}
	m, err := readValueMapping(r)
	if err != nil {
		return 0, nil, err
	}
	return size, m, nil
}

// addAll appends every logical slot of src to dst, preserving null slots at
// their new positions.
func addAll(dst, src UnitArray) {
	for i := 0; i < src.Size(); i++ {
		if u, ok := src.Get(i); ok {
			dst.Add(u)
		} else {
			dst.Add(Unit{})
			dst.SetNull(dst.Size() - 1)
		}
	}
}
