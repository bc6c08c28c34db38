package units

import (
	"testing"

	"github.com/stretchr/testify/require"

	"golang.org/x/exp/slices"
)

func TestSuffixComparator_FinalSlotSortsLast(t *testing.T) {
	t.Parallel()
	a := NewFastUnitArray(0)
	a.Add(Unit{ValueCode: 9, WordEnd: true})
	a.Add(Unit{ValueCode: 1, WordEnd: true})
	a.Add(Unit{ValueCode: 1, WordEnd: true})

	c := SuffixComparator{Array: a, ByPosition: true}
	require.Positive(t, c.Compare(2, 0))
	require.Positive(t, c.Compare(2, 1))
	require.Negative(t, c.Compare(1, 2))
}

func TestSuffixComparator_GroupsEqualPrefixes(t *testing.T) {
	t.Parallel()
	a := NewFastUnitArray(0)
	// Two occurrences of the pair (5,6) separated by noise.
	a.Add(Unit{ValueCode: 5, WordContinued: true}) // 0
	a.Add(Unit{ValueCode: 6, WordEnd: true})       // 1
	a.Add(Unit{ValueCode: 2, WordEnd: true})       // 2
	a.Add(Unit{ValueCode: 5, WordContinued: true}) // 3
	a.Add(Unit{ValueCode: 6, WordEnd: true})       // 4
	a.Add(Unit{ValueCode: 1, WordEnd: true})       // 5

	c := SuffixComparator{Array: a, ByPosition: true}
	sa := []int{0, 1, 2, 3, 4, 5}
	slices.SortFunc(sa, func(x, y int) bool { return c.Compare(x, y) < 0 })

	i0 := slices.Index(sa, 0)
	require.Equal(t, 3, sa[i0+1], "equal suffixes must be adjacent, position order")
	require.True(t, c.EqualPrefix(0, 3))
	require.False(t, c.EqualPrefix(0, 1))

	// Position tiebreak keeps the sort deterministic.
	require.Negative(t, c.Compare(0, 3))
	require.Zero(t, SuffixComparator{Array: a}.Compare(0, 3))
}
