package llt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lltrie/units"
)

func wordTree(words []string, withData bool) *Node {
	root := NewNode()
	for i, w := range words {
		data := 0
		if withData {
			data = i
		}
		root.InsertString(w, data)
	}
	return root
}

func TestBuildFast_Layout(t *testing.T) {
	t.Parallel()
	fast := BuildFast(wordTree([]string{"ab", "cab"}, false), false)

	// root, a, b, c, a, b: pre-order with the subtree of each sibling laid
	// out before the next sibling.
	require.Equal(t, 6, fast.Size())
	require.Equal(t, units.RootValueCode, fast.ValueCode(0))
	require.True(t, fast.IsWordContinued(0))

	// a's sibling c sits behind a's subtree.
	require.Equal(t, int32('a'), fast.Value(1))
	require.Equal(t, 2, fast.Distance(1))
	require.Equal(t, int32('c'), fast.Value(3))
	require.Equal(t, 0, fast.Distance(3))

	require.True(t, fast.IsWordEnd(2))
	require.False(t, fast.IsWordContinued(2))
	require.True(t, fast.IsWordEnd(5))
}

func TestBuildFast_SiblingCodesAscend(t *testing.T) {
	t.Parallel()
	words := []string{"zebra", "apple", "mango", "ant", "zoo", "m"}
	fast := BuildFast(wordTree(words, false), false)

	// Invariant: every sibling chain carries strictly ascending value codes.
	for i := 0; i < fast.Size(); i++ {
		if d := fast.Distance(i); d > 0 && !fast.IsAbsolutePointer(i) {
			require.Less(t, fast.ValueCode(i), fast.ValueCode(i+d),
				"sibling chain at %d", i)
		}
	}
}

func TestBuild_ClearBaseTree(t *testing.T) {
	t.Parallel()
	root := wordTree([]string{"one", "two", "three"}, false)
	tree, err := Build(context.Background(), root, BuildOptions{ClearBaseTree: true})
	require.NoError(t, err)

	require.True(t, tree.ContainsString("two"))
	require.Empty(t, root.Children(), "base tree must be dismantled during build")
}

func TestBuild_UncompressedIsCompacted(t *testing.T) {
	t.Parallel()
	tree, err := Build(context.Background(), wordTree([]string{"aa", "ab"}, false), BuildOptions{})
	require.NoError(t, err)

	compact, ok := tree.UnitArray().(*units.CompactUnitArray)
	require.True(t, ok)
	require.True(t, compact.IsCompacted())
	require.True(t, tree.ContainsString("aa"))
	require.False(t, tree.ContainsString("a"))
}

func TestBuild_EmptyTree(t *testing.T) {
	t.Parallel()
	tree, err := Build(context.Background(), NewNode(), BuildOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, tree.NumberOfUnits())
	require.False(t, tree.ContainsString("a"))
}
