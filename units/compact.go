package units

import (
	"fmt"
	"io"
	"unsafe"

	"lltrie/bits"
	"lltrie/utils"
)

const compactVersion = 3

// CompactUnitArray stores unit fields through bit arrays and packed int
// arrays. Compact() additionally deduplicates identical units behind an
// items redirect table and freezes the array; a frozen array is safe for
// concurrent readers.
type CompactUnitArray struct {
	wordContinued *bits.BitArray
	wordEnd       *bits.BitArray
	distance      *bits.PackedIntArray
	valueCode     *bits.PackedIntArray
	dataCode      *bits.PackedIntArray

	// items maps logical index to physical slot once Compact() has run;
	// physical slots hold only distinct units.
	items     *bits.PackedIntArray
	isCompact bool

	mapping *ValueMapping
}

var _ UnitArray = (*CompactUnitArray)(nil)

// NewCompactUnitArray creates an empty array sized for capacity units with
// the given expected field maxima.
func NewCompactUnitArray(capacity int, maxDistance, maxValueCode, maxDataCode int64) *CompactUnitArray {
	return &CompactUnitArray{
		wordContinued: bits.NewBitArray(capacity),
		wordEnd:       bits.NewBitArray(capacity),
		distance:      bits.NewPackedIntArray(capacity, maxDistance),
		valueCode:     bits.NewPackedIntArray(capacity, maxValueCode),
		dataCode:      bits.NewPackedIntArray(capacity, maxDataCode),
		mapping:       NewValueMapping(),
	}
}

// NewCompactCopy copies every logical slot of src into a new Compact array
// sharing src's value mapping. The copy is not yet deduplicated; call
// Compact() to freeze it.
func NewCompactCopy(src UnitArray) *CompactUnitArray {
	n := src.Size()
	maxDistance, maxValueCode, maxDataCode := int64(1), int64(1), int64(1)
	for i := 0; i < n; i++ {
		fi := src.FastIndex(i)
		maxDistance = maxInt64(maxDistance, int64(src.DistanceFast(fi)))
		maxValueCode = maxInt64(maxValueCode, int64(src.ValueCodeFast(fi)))
		maxDataCode = maxInt64(maxDataCode, int64(src.DataCodeFast(fi)))
	}
	a := NewCompactUnitArray(n, maxDistance, maxValueCode, maxDataCode)
	a.mapping = src.ValueMapping()
	addAll(a, src)
	return a
}

// IsCompacted reports whether Compact() has run.
func (a *CompactUnitArray) IsCompacted() bool {
	return a.isCompact
}

func (a *CompactUnitArray) mutable() {
	if a.isCompact {
		panic("units: array is compact")
	}
}

func (a *CompactUnitArray) Size() int {
	if a.isCompact {
		return a.items.Size()
	}
	return a.distance.Size()
}

// FastIndex redirects a logical index to its physical slot. Identity before
// Compact() has run.
func (a *CompactUnitArray) FastIndex(i int) int {
	checkIndex(i, a.Size())
	if a.isCompact {
		return int(a.items.Get(i))
	}
	return i
}

func (a *CompactUnitArray) rawUnit(i int) Unit {
	fi := a.FastIndex(i)
	return Unit{
		ValueCode:     int(a.valueCode.Get(fi)),
		Distance:      int(a.distance.Get(fi)),
		DataCode:      int(a.dataCode.Get(fi)),
		WordEnd:       a.wordEnd.Get(fi),
		WordContinued: a.wordContinued.Get(fi),
	}
}

func (a *CompactUnitArray) Get(i int) (Unit, bool) {
	u := a.rawUnit(i)
	if u.IsAbsolutePointer() && u.Distance == i {
		return Unit{}, false
	}
	return u, true
}

func (a *CompactUnitArray) Set(i int, u Unit) {
	a.mutable()
	checkIndex(i, a.Size())
	a.valueCode.Set(i, int64(u.ValueCode))
	a.distance.Set(i, int64(u.Distance))
	a.dataCode.Set(i, int64(u.DataCode))
	a.wordEnd.Set(i, u.WordEnd)
	a.wordContinued.Set(i, u.WordContinued)
}

func (a *CompactUnitArray) SetNull(i int) {
	a.Set(i, Unit{Distance: i})
}

func (a *CompactUnitArray) Add(u Unit) {
	a.mutable()
	i := a.Size()
	a.valueCode.Add(int64(u.ValueCode))
	a.distance.Add(int64(u.Distance))
	a.dataCode.Add(int64(u.DataCode))
	a.wordEnd.Set(i, u.WordEnd)
	a.wordContinued.Set(i, u.WordContinued)
}

func (a *CompactUnitArray) AddAll(other UnitArray) {
	addAll(a, other)
}

func (a *CompactUnitArray) IsNull(i int) bool {
	_, ok := a.Get(i)
	return !ok
}

func (a *CompactUnitArray) IsWordEnd(i int) bool {
	return a.wordEnd.Get(a.FastIndex(i))
}

func (a *CompactUnitArray) IsWordContinued(i int) bool {
	return a.wordContinued.Get(a.FastIndex(i))
}

func (a *CompactUnitArray) IsAbsolutePointer(i int) bool {
	u := a.rawUnit(i)
	return u.IsAbsolutePointer() && u.Distance != i
}

func (a *CompactUnitArray) Distance(i int) int {
	return int(a.distance.Get(a.FastIndex(i)))
}

func (a *CompactUnitArray) ValueCode(i int) int {
	return int(a.valueCode.Get(a.FastIndex(i)))
}

func (a *CompactUnitArray) DataCode(i int) int {
	return int(a.dataCode.Get(a.FastIndex(i)))
}

func (a *CompactUnitArray) Value(i int) int32 {
	return a.mapping.Value(a.ValueCode(i))
}

func (a *CompactUnitArray) EqualUnits(i, j int) bool {
	return a.rawUnit(i) == a.rawUnit(j)
}

func (a *CompactUnitArray) CompareUnits(i, j int) int {
	return a.rawUnit(i).Compare(a.rawUnit(j))
}

func (a *CompactUnitArray) DistanceFast(fi int) int         { return int(a.distance.Get(fi)) }
func (a *CompactUnitArray) ValueCodeFast(fi int) int        { return int(a.valueCode.Get(fi)) }
func (a *CompactUnitArray) DataCodeFast(fi int) int         { return int(a.dataCode.Get(fi)) }
func (a *CompactUnitArray) IsWordEndFast(fi int) bool       { return a.wordEnd.Get(fi) }
func (a *CompactUnitArray) IsWordContinuedFast(fi int) bool { return a.wordContinued.Get(fi) }

func (a *CompactUnitArray) SubArray(start, end int) *FastUnitArray {
	if start < 0 || end < start || end > a.Size() {
		panic(fmt.Sprintf("units: sub-array [%d, %d) out of range for unit array of size %d", start, end, a.Size()))
	}
	sub := NewFastUnitArray(end - start)
	sub.SetValueMapping(a.mapping)
	for i := start; i < end; i++ {
		u := a.rawUnit(i)
		if u.IsAbsolutePointer() && u.Distance == i {
			sub.Add(Unit{})
			sub.SetNull(sub.Size() - 1)
		} else {
			sub.Add(u)
		}
	}
	return sub
}

func (a *CompactUnitArray) MoveAbsolutePointers(offset int) {
	a.mutable()
	for i := 0; i < a.Size(); i++ {
		if a.IsAbsolutePointer(i) {
			a.distance.Set(i, int64(a.Distance(i)+offset))
		}
	}
}

func (a *CompactUnitArray) ValueMapping() *ValueMapping {
	return a.mapping
}

func (a *CompactUnitArray) SetValueMapping(m *ValueMapping) {
	a.mapping = m
}

func (a *CompactUnitArray) MapToValueCode(symbol int32) int {
	return a.mapping.Code(symbol)
}

// Compact deduplicates identical units behind the items redirect table and
// freezes the array against further mutation. Units are bucketed by hash
// first so the quadratic field-equality scan only runs within a bucket.
func (a *CompactUnitArray) Compact() {
	if a.isCompact {
		return
	}
	n := a.Size()

	type slotRef struct {
		unit Unit
		slot int
	}
	buckets := make(map[uint64][]slotRef, n/4+1)
	distinct := make([]Unit, 0, n/4+1)
	slots := make([]int, n)

	for i := 0; i < n; i++ {
		u := a.rawUnit(i)
		h := u.Hash()
		found := -1
		for _, ref := range buckets[h] {
			if ref.unit == u {
				found = ref.slot
				break
			}
		}
		if found < 0 {
			found = len(distinct)
			distinct = append(distinct, u)
			buckets[h] = append(buckets[h], slotRef{unit: u, slot: found})
		}
		slots[i] = found
	}

	maxSlot := int64(len(distinct) - 1)
	if maxSlot < 1 {
		maxSlot = 1
	}
	items := bits.NewPackedIntArray(n, maxSlot)
	for _, s := range slots {
		items.Add(int64(s))
	}
	items.Compact()

	maxDistance, maxValueCode, maxDataCode := int64(1), int64(1), int64(1)
	for _, u := range distinct {
		maxDistance = maxInt64(maxDistance, int64(u.Distance))
		maxValueCode = maxInt64(maxValueCode, int64(u.ValueCode))
		maxDataCode = maxInt64(maxDataCode, int64(u.DataCode))
	}
	packed := NewCompactUnitArray(len(distinct), maxDistance, maxValueCode, maxDataCode)
	for _, u := range distinct {
		packed.Add(u)
	}

	a.wordContinued = packed.wordContinued
	a.wordEnd = packed.wordEnd
	a.distance = packed.distance
	a.valueCode = packed.valueCode
	a.dataCode = packed.dataCode
	a.items = items
	a.isCompact = true
	a.TrimToSize()
}

// TrimToSize shrinks every backing array to fit.
func (a *CompactUnitArray) TrimToSize() {
	a.wordContinued.Compact()
	a.wordEnd.Compact()
	a.distance.Compact()
	a.valueCode.Compact()
	a.dataCode.Compact()
	if a.items != nil {
		a.items.Compact()
	}
}

func (a *CompactUnitArray) Dispose() {
	a.wordContinued = nil
	a.wordEnd = nil
	a.distance = nil
	a.valueCode = nil
	a.dataCode = nil
	a.items = nil
}

func (a *CompactUnitArray) AllocationSize() int {
	total := a.wordContinued.AllocationSize() + a.wordEnd.AllocationSize() +
		a.distance.AllocationSize() + a.valueCode.AllocationSize() +
		a.dataCode.AllocationSize() +
		a.mapping.AllocationSize() + int(unsafe.Sizeof(*a))
	if a.items != nil {
		total += a.items.AllocationSize()
	}
	return total
}

func (a *CompactUnitArray) MemDetailed() utils.MemReport {
	children := []utils.MemReport{
		{Name: "word_continued", TotalBytes: a.wordContinued.AllocationSize()},
		{Name: "word_end", TotalBytes: a.wordEnd.AllocationSize()},
		{Name: "distance", TotalBytes: a.distance.AllocationSize()},
		{Name: "value_code", TotalBytes: a.valueCode.AllocationSize()},
		{Name: "data_code", TotalBytes: a.dataCode.AllocationSize()},
		{Name: "value_mapping", TotalBytes: a.mapping.AllocationSize()},
	}
	if a.items != nil {
		children = append(children, utils.MemReport{Name: "items", TotalBytes: a.items.AllocationSize()})
	}
	return utils.MemReport{
		Name:       "compact_unit_array",
		TotalBytes: a.AllocationSize(),
		Children:   children,
	}
}

// Write serializes the array: the shared unit-array header, the Compact
// format version, the compacted flag, the flag bit arrays, the packed field
// arrays, then the items table when the array is deduplicated.
func (a *CompactUnitArray) Write(w io.Writer) error {
	if err := writeAbstractHeader(w, a.Size(), a.mapping); err != nil {
		return err
	}
	if err := bits.WriteByte(w, compactVersion); err != nil {
		return err
	}
	if err := bits.WriteBool(w, a.isCompact); err != nil {
		return err
	}
	if err := a.writeBackingArrays(w); err != nil {
		return err
	}
	if a.isCompact {
		return a.items.Write(w)
	}
	return nil
}

func (a *CompactUnitArray) writeBackingArrays(w io.Writer) error {
	if err := a.wordContinued.Write(w); err != nil {
		return err
	}
	if err := a.wordEnd.Write(w); err != nil {
		return err
	}
	if err := a.distance.Write(w); err != nil {
		return err
	}
	if err := a.valueCode.Write(w); err != nil {
		return err
	}
	return a.dataCode.Write(w)
}

// ReadCompactUnitArray deserializes an array written by Write.
func ReadCompactUnitArray(r io.Reader) (*CompactUnitArray, error) {
	size, mapping, err := readAbstractHeader(r)
	if err != nil {
		return nil, err
	}
	if err := bits.CheckVersion(r, compactVersion, "compact unit array"); err != nil {
		return nil, err
	}
	isCompact, err := bits.ReadBool(r)
	if err != nil {
		return nil, err
	}
	a := &CompactUnitArray{mapping: mapping}
	if a.wordContinued, err = bits.ReadBitArray(r); err != nil {
		return nil, err
	}
	if a.wordEnd, err = bits.ReadBitArray(r); err != nil {
		return nil, err
	}
	if a.distance, err = bits.ReadPackedIntArray(r); err != nil {
		return nil, err
	}
	if a.valueCode, err = bits.ReadPackedIntArray(r); err != nil {
		return nil, err
	}
	if a.dataCode, err = bits.ReadPackedIntArray(r); err != nil {
		return nil, err
	}
	if isCompact {
		if a.items, err = bits.ReadPackedIntArray(r); err != nil {
			return nil, err
		}
		a.isCompact = true
	}
	if a.Size() != size {
		return nil, fmt.Errorf("compact unit array size %d does not match header size %d: %w",
			a.Size(), size, bits.ErrInvalidFormat)
	}
	return a, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
