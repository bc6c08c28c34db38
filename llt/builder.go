package llt

import (
	"context"
	"sort"

	"k8s.io/klog/v2"

	"lltrie/compress"
	"lltrie/units"
)

// BuildOptions configure the conversion of a source tree into a tree.
type BuildOptions struct {
	// Compress runs the LZ compressor on the unit array before compacting.
	Compress bool
	// Parallel selects partition-parallel compression.
	Parallel bool
	// ClearBaseTree dismantles the source tree while building, halving peak
	// memory at the cost of consuming the input.
	ClearBaseTree bool
	// Compressor overrides the compressor options; zero values mean defaults.
	Compressor compress.Options
}

// BuildFast converts a source tree into the mutable Fast unit array:
// value-mapped and pre-order laid out, with back-patched sibling distances.
func BuildFast(root SourceNode, clearBaseTree bool) *units.FastUnitArray {
	b := &builder{
		fast:      units.NewFastUnitArray(64),
		clearBase: clearBaseTree,
	}
	b.fast.Add(units.Unit{
		ValueCode:     units.RootValueCode,
		WordContinued: len(root.Children()) > 0,
	})
	b.emit(root)
	b.fast.TrimToSize()
	klog.V(2).Infof("built %d units from source tree", b.fast.Size())
	return b.fast
}

// Build converts a source tree into a linked-list tree: value-mapped,
// pre-order laid out, optionally compressed, and finally compacted.
func Build(ctx context.Context, root SourceNode, opts BuildOptions) (*Tree, error) {
	t := &Tree{arr: BuildFast(root, opts.ClearBaseTree)}
	if opts.Compress {
		co := opts.Compressor
		co.Parallel = co.Parallel || opts.Parallel
		if err := t.CompressWith(ctx, co); err != nil {
			return nil, err
		}
		return t, nil
	}
	compact := units.NewCompactCopy(t.arr)
	compact.Compact()
	t.arr = compact
	return t, nil
}

type builder struct {
	fast      *units.FastUnitArray
	clearBase bool
}

// emit lays out node's subtree in pre-order. Sibling lists are sorted by
// mapped value code; first appearance of a value registers the next free
// code, so codes follow the pre-order encounter order.
func (b *builder) emit(node SourceNode) {
	children := node.Children()
	if len(children) == 0 {
		return
	}
	mapping := b.fast.ValueMapping()
	codes := make([]int, len(children))
	for i, ch := range children {
		codes[i] = mapping.Register(ch.Value())
	}
	order := make([]int, len(children))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool {
		return codes[order[x]] < codes[order[y]]
	})

	prevPos := -1
	for _, idx := range order {
		ch := children[idx]
		pos := b.fast.Size()
		if prevPos >= 0 {
			u, _ := b.fast.Get(prevPos)
			u.Distance = pos - prevPos
			b.fast.Set(prevPos, u)
		}
		u := units.Unit{
			ValueCode:     codes[idx],
			WordEnd:       ch.Terminal(),
			WordContinued: len(ch.Children()) > 0,
		}
		if u.WordEnd {
			u.DataCode = ch.Data()
		}
		b.fast.Add(u)
		prevPos = pos
		b.emit(ch)
	}
	if b.clearBase {
		if cc, ok := node.(childClearer); ok {
			cc.ClearChildren()
		}
	}
}
