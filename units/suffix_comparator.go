package units

// SuffixComparator orders array positions by the unit sequence starting at
// each position, with a lookahead of two units. The compressor's replacement
// search walks the true match length itself, so two units are enough to group
// repeated fragments next to each other in a suffix array. With ByPosition
// set, ties break by position, making the order total and the sort result
// deterministic.
type SuffixComparator struct {
	Array      UnitArray
	ByPosition bool
}

// Compare returns a negative, zero or positive value ordering positions a
// and b. The final slot of the array sorts after everything else.
func (c SuffixComparator) Compare(a, b int) int {
	if a == b {
		return 0
	}
	last := c.Array.Size() - 1
	if a == last {
		return 1
	}
	if b == last {
		return -1
	}
	if r := c.Array.CompareUnits(a, b); r != 0 {
		return r
	}
	if r := c.Array.CompareUnits(a+1, b+1); r != 0 {
		return r
	}
	if c.ByPosition {
		if a < b {
			return -1
		}
		return 1
	}
	return 0
}

// EqualPrefix reports whether positions a and b start with the same two
// units, the grouping relation that defines a partition.
func (c SuffixComparator) EqualPrefix(a, b int) bool {
	last := c.Array.Size() - 1
	if a == last || b == last {
		return a == b
	}
	return c.Array.CompareUnits(a, b) == 0 && c.Array.CompareUnits(a+1, b+1) == 0
}
