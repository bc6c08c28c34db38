package llt

import (
	"context"
	"fmt"
	"io"

	"lltrie/bits"
	"lltrie/compress"
	"lltrie/units"
	"lltrie/utils"
)

const treeVersion = 2

// Tree is a read-only linked-list tree over a unit array. Lookups on a
// compacted tree are safe for concurrent use as long as each goroutine uses
// its own Traverser.
type Tree struct {
	arr units.UnitArray
}

// New wraps an existing unit array.
func New(arr units.UnitArray) *Tree {
	return &Tree{arr: arr}
}

// UnitArray exposes the backing array.
func (t *Tree) UnitArray() units.UnitArray {
	return t.arr
}

// NumberOfUnits returns the logical unit count.
func (t *Tree) NumberOfUnits() int {
	return t.arr.Size()
}

// Compress rewrites the tree's unit array through the LZ compressor with
// default options and compacts the result.
func (t *Tree) Compress(ctx context.Context, parallel bool) error {
	opts := compress.DefaultOptions()
	opts.Parallel = parallel
	return t.CompressWith(ctx, opts)
}

// CompressWith is Compress with explicit compressor options. While the
// compressor runs, the tree serves queries from a compact copy of the input
// array; a failed run leaves that copy in place, never a broken tree.
func (t *Tree) CompressWith(ctx context.Context, opts compress.Options) error {
	src := t.arr
	t.arr = units.NewCompactCopy(src)

	c := compress.New(opts)
	defer c.Clear()
	result, err := c.Compress(ctx, src)
	if err != nil {
		return fmt.Errorf("compressing tree: %w", err)
	}

	compact := units.NewCompactCopy(result)
	compact.Compact()
	t.arr = compact
	return nil
}

// Traverse returns a fresh traverser over the tree.
func (t *Tree) Traverse() *Traverser {
	return NewTraverser(t.arr)
}

// Contains reports whether the key spelled by path is stored.
func (t *Tree) Contains(path []int32) bool {
	tr := NewTraverser(t.arr)
	return tr.Descend(path) && tr.IsWordEnd()
}

// HasPrefix reports whether path exists in the tree, terminal or not.
func (t *Tree) HasPrefix(path []int32) bool {
	return NewTraverser(t.arr).Descend(path)
}

// Data returns the payload stored for the key spelled by path.
func (t *Tree) Data(path []int32) (int, bool) {
	return NewTraverser(t.arr).Data(path)
}

// ContainsString, HasPrefixString and DataString operate on the runes of s.
func (t *Tree) ContainsString(s string) bool {
	return t.Contains([]int32(s))
}

func (t *Tree) HasPrefixString(s string) bool {
	return t.HasPrefix([]int32(s))
}

func (t *Tree) DataString(s string) (int, bool) {
	return t.Data([]int32(s))
}

// AllocationSize returns the resident size estimate in bytes.
func (t *Tree) AllocationSize() int {
	return t.arr.AllocationSize()
}

// MemDetailed returns a hierarchical memory report.
func (t *Tree) MemDetailed() utils.MemReport {
	return utils.MemReport{
		Name:       "linked_list_tree",
		TotalBytes: t.AllocationSize(),
		Children:   []utils.MemReport{t.arr.MemDetailed()},
	}
}

// Write serializes the tree: the tree format version followed by the compact
// unit array. A tree still backed by a Fast array is converted on the fly.
func (t *Tree) Write(w io.Writer) error {
	if err := bits.WriteByte(w, treeVersion); err != nil {
		return err
	}
	compact, ok := t.arr.(*units.CompactUnitArray)
	if !ok {
		compact = units.NewCompactCopy(t.arr)
		compact.Compact()
	}
	return compact.Write(w)
}

// ReadTree deserializes a tree written by Write.
func ReadTree(r io.Reader) (*Tree, error) {
	if err := bits.CheckVersion(r, treeVersion, "linked list tree"); err != nil {
		return nil, err
	}
	arr, err := units.ReadCompactUnitArray(r)
	if err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}
	return &Tree{arr: arr}, nil
}
