package units

import (
	"fmt"
	"io"
	"unsafe"

	"lltrie/bits"
	"lltrie/errutil"
	"lltrie/utils"
)

const fastVersion = 3

// FastUnitArray keeps every unit field in its own primitive slice. All
// accessors are O(1) and mutation is unrestricted, which makes it the working
// representation for the builder and the compressor. It is large: roughly 14
// bytes per unit against the Compact form's packed layout.
type FastUnitArray struct {
	valueCode     []uint32
	distance      []uint32
	dataCode      []uint32
	wordEnd       []bool
	wordContinued []bool
	size          int
	mapping       *ValueMapping
}

var _ UnitArray = (*FastUnitArray)(nil)

// NewFastUnitArray creates an empty Fast array with room for capacity units.
func NewFastUnitArray(capacity int) *FastUnitArray {
	return &FastUnitArray{
		valueCode:     make([]uint32, 0, capacity),
		distance:      make([]uint32, 0, capacity),
		dataCode:      make([]uint32, 0, capacity),
		wordEnd:       make([]bool, 0, capacity),
		wordContinued: make([]bool, 0, capacity),
		mapping:       NewValueMapping(),
	}
}

// NewFastCopy copies every logical slot of src into a new Fast array sharing
// src's value mapping.
func NewFastCopy(src UnitArray) *FastUnitArray {
	a := NewFastUnitArray(src.Size())
	addAll(a, src)
	a.mapping = src.ValueMapping()
	return a
}

func (a *FastUnitArray) Size() int {
	return a.size
}

func (a *FastUnitArray) Get(i int) (Unit, bool) {
	checkIndex(i, a.size)
	if a.isNull(i) {
		return Unit{}, false
	}
	return Unit{
		ValueCode:     int(a.valueCode[i]),
		Distance:      int(a.distance[i]),
		DataCode:      int(a.dataCode[i]),
		WordEnd:       a.wordEnd[i],
		WordContinued: a.wordContinued[i],
	}, true
}

func (a *FastUnitArray) Set(i int, u Unit) {
	checkIndex(i, a.size)
	a.valueCode[i] = uint32(u.ValueCode)
	a.distance[i] = uint32(u.Distance)
	a.dataCode[i] = uint32(u.DataCode)
	a.wordEnd[i] = u.WordEnd
	a.wordContinued[i] = u.WordContinued
}

// SetNull writes the null sentinel at i: both flags false and the distance
// equal to the slot's own index.
func (a *FastUnitArray) SetNull(i int) {
	checkIndex(i, a.size)
	a.valueCode[i] = 0
	a.distance[i] = uint32(i)
	a.dataCode[i] = 0
	a.wordEnd[i] = false
	a.wordContinued[i] = false
}

func (a *FastUnitArray) Add(u Unit) {
	a.valueCode = append(a.valueCode, uint32(u.ValueCode))
	a.distance = append(a.distance, uint32(u.Distance))
	a.dataCode = append(a.dataCode, uint32(u.DataCode))
	a.wordEnd = append(a.wordEnd, u.WordEnd)
	a.wordContinued = append(a.wordContinued, u.WordContinued)
	a.size++
}

func (a *FastUnitArray) AddAll(other UnitArray) {
	addAll(a, other)
}

func (a *FastUnitArray) isNull(i int) bool {
	return !a.wordEnd[i] && !a.wordContinued[i] && a.distance[i] == uint32(i)
}

func (a *FastUnitArray) IsNull(i int) bool {
	checkIndex(i, a.size)
	return a.isNull(i)
}

func (a *FastUnitArray) IsWordEnd(i int) bool {
	checkIndex(i, a.size)
	return a.wordEnd[i]
}

func (a *FastUnitArray) IsWordContinued(i int) bool {
	checkIndex(i, a.size)
	return a.wordContinued[i]
}

// IsAbsolutePointer reports whether i holds a live absolute pointer. Null
// slots are excluded.
func (a *FastUnitArray) IsAbsolutePointer(i int) bool {
	checkIndex(i, a.size)
	return !a.wordEnd[i] && !a.wordContinued[i] && a.distance[i] != uint32(i)
}

func (a *FastUnitArray) Distance(i int) int {
	checkIndex(i, a.size)
	return int(a.distance[i])
}

func (a *FastUnitArray) ValueCode(i int) int {
	checkIndex(i, a.size)
	return int(a.valueCode[i])
}

func (a *FastUnitArray) DataCode(i int) int {
	checkIndex(i, a.size)
	return int(a.dataCode[i])
}

func (a *FastUnitArray) Value(i int) int32 {
	return a.mapping.Value(a.ValueCode(i))
}

func (a *FastUnitArray) EqualUnits(i, j int) bool {
	checkIndex(i, a.size)
	checkIndex(j, a.size)
	return a.valueCode[i] == a.valueCode[j] &&
		a.distance[i] == a.distance[j] &&
		a.dataCode[i] == a.dataCode[j] &&
		a.wordEnd[i] == a.wordEnd[j] &&
		a.wordContinued[i] == a.wordContinued[j]
}

func (a *FastUnitArray) CompareUnits(i, j int) int {
	u, _ := a.unitAt(i)
	v, _ := a.unitAt(j)
	return u.Compare(v)
}

// unitAt returns the raw fields at i even for null slots.
func (a *FastUnitArray) unitAt(i int) (Unit, bool) {
	checkIndex(i, a.size)
	return Unit{
		ValueCode:     int(a.valueCode[i]),
		Distance:      int(a.distance[i]),
		DataCode:      int(a.dataCode[i]),
		WordEnd:       a.wordEnd[i],
		WordContinued: a.wordContinued[i],
	}, !a.isNull(i)
}

// FastIndex is the identity on a Fast array.
func (a *FastUnitArray) FastIndex(i int) int             { return i }
func (a *FastUnitArray) DistanceFast(fi int) int         { return int(a.distance[fi]) }
func (a *FastUnitArray) ValueCodeFast(fi int) int        { return int(a.valueCode[fi]) }
func (a *FastUnitArray) DataCodeFast(fi int) int         { return int(a.dataCode[fi]) }
func (a *FastUnitArray) IsWordEndFast(fi int) bool       { return a.wordEnd[fi] }
func (a *FastUnitArray) IsWordContinuedFast(fi int) bool { return a.wordContinued[fi] }

func (a *FastUnitArray) SubArray(start, end int) *FastUnitArray {
	if start < 0 || end < start || end > a.size {
		panic(fmt.Sprintf("units: sub-array [%d, %d) out of range for unit array of size %d", start, end, a.size))
	}
	sub := NewFastUnitArray(end - start)
	sub.mapping = a.mapping
	for i := start; i < end; i++ {
		if u, ok := a.unitAt(i); ok {
			sub.Add(u)
		} else {
			sub.Add(Unit{})
			sub.SetNull(sub.size - 1)
		}
	}
	return sub
}

func (a *FastUnitArray) MoveAbsolutePointers(offset int) {
	for i := 0; i < a.size; i++ {
		if a.IsAbsolutePointer(i) {
			a.distance[i] = uint32(int(a.distance[i]) + offset)
		}
	}
}

func (a *FastUnitArray) ValueMapping() *ValueMapping {
	return a.mapping
}

func (a *FastUnitArray) SetValueMapping(m *ValueMapping) {
	a.mapping = m
}

func (a *FastUnitArray) MapToValueCode(symbol int32) int {
	return a.mapping.Code(symbol)
}

func (a *FastUnitArray) TrimToSize() {
	a.valueCode = append([]uint32(nil), a.valueCode[:a.size]...)
	a.distance = append([]uint32(nil), a.distance[:a.size]...)
	a.dataCode = append([]uint32(nil), a.dataCode[:a.size]...)
	a.wordEnd = append([]bool(nil), a.wordEnd[:a.size]...)
	a.wordContinued = append([]bool(nil), a.wordContinued[:a.size]...)
}

func (a *FastUnitArray) Dispose() {
	a.valueCode = nil
	a.distance = nil
	a.dataCode = nil
	a.wordEnd = nil
	a.wordContinued = nil
	a.size = 0
}

func (a *FastUnitArray) AllocationSize() int {
	return cap(a.valueCode)*4 + cap(a.distance)*4 + cap(a.dataCode)*4 +
		cap(a.wordEnd) + cap(a.wordContinued) +
		a.mapping.AllocationSize() + int(unsafe.Sizeof(*a))
}

func (a *FastUnitArray) MemDetailed() utils.MemReport {
	return utils.MemReport{
		Name:       "fast_unit_array",
		TotalBytes: a.AllocationSize(),
		Children: []utils.MemReport{
			{Name: "value_code", TotalBytes: cap(a.valueCode) * 4},
			{Name: "distance", TotalBytes: cap(a.distance) * 4},
			{Name: "data_code", TotalBytes: cap(a.dataCode) * 4},
			{Name: "flags", TotalBytes: cap(a.wordEnd) + cap(a.wordContinued)},
			{Name: "value_mapping", TotalBytes: a.mapping.AllocationSize()},
		},
	}
}

// Write serializes the array: the shared unit-array header, the Fast format
// version, the size, then per unit (word continued, word end, distance,
// value code, data code).
func (a *FastUnitArray) Write(w io.Writer) error {
	if err := writeAbstractHeader(w, a.size, a.mapping); err != nil {
		return err
	}
	if err := bits.WriteByte(w, fastVersion); err != nil {
		return err
	}
	if err := bits.WriteInt(w, a.size); err != nil {
		return err
	}
	for i := 0; i < a.size; i++ {
		if err := errutil.First(
			bits.WriteBool(w, a.wordContinued[i]),
			bits.WriteBool(w, a.wordEnd[i]),
			bits.WriteInt(w, int(a.distance[i])),
			bits.WriteInt(w, int(a.valueCode[i])),
			bits.WriteInt(w, int(a.dataCode[i])),
		); err != nil {
			return err
		}
	}
	return nil
}

// ReadFastUnitArray deserializes an array written by Write.
func ReadFastUnitArray(r io.Reader) (*FastUnitArray, error) {
	size, mapping, err := readAbstractHeader(r)
	if err != nil {
		return nil, err
	}
	if err := bits.CheckVersion(r, fastVersion, "fast unit array"); err != nil {
		return nil, err
	}
	bodySize, err := bits.ReadInt(r)
	if err != nil {
		return nil, err
	}
	if bodySize != size {
		return nil, fmt.Errorf("fast unit array size %d does not match header size %d: %w",
			bodySize, size, bits.ErrInvalidFormat)
	}
	a := NewFastUnitArray(size)
	a.mapping = mapping
	for i := 0; i < size; i++ {
		var u Unit
		if u.WordContinued, err = bits.ReadBool(r); err != nil {
			return nil, err
		}
		if u.WordEnd, err = bits.ReadBool(r); err != nil {
			return nil, err
		}
		if u.Distance, err = bits.ReadInt(r); err != nil {
			return nil, err
		}
		if u.ValueCode, err = bits.ReadInt(r); err != nil {
			return nil, err
		}
		if u.DataCode, err = bits.ReadInt(r); err != nil {
			return nil, err
		}
		a.Add(u)
	}
	return a, nil
}
