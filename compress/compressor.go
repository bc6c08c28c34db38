// Package compress implements LZ-style self-compression of a unit array.
// A suffix array groups positions that start with the same two units;
// within each group the earliest occurrence is kept and later occurrences
// are rewritten to a one-unit absolute pointer at it, the freed slots are
// nulled, and a final compaction pass removes the null slots and repairs
// every distance the removal shifted.
package compress

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"lltrie/errutil"
	"lltrie/units"
)

const (
	// DefaultMaxReplacementLen keeps the replacement length of a pointer in
	// seven bits.
	DefaultMaxReplacementLen = 127

	// DefaultMaxPartitionSize bounds how many suffix-array positions sharing
	// a two-unit prefix are processed as one partition.
	DefaultMaxPartitionSize = 1 << 13
)

// Options configure a Compressor.
type Options struct {
	MaxReplacementLen int
	MaxPartitionSize  int
	// Parallel processes partitions on a bounded worker pool.
	Parallel bool
	// Workers overrides the pool size; 0 means max(1, NumCPU-1).
	Workers int
}

// DefaultOptions returns the single-threaded defaults.
func DefaultOptions() Options {
	return Options{
		MaxReplacementLen: DefaultMaxReplacementLen,
		MaxPartitionSize:  DefaultMaxPartitionSize,
	}
}

// Stats describe one compression run.
type Stats struct {
	InputUnits   int
	OutputUnits  int
	Partitions   int
	Replacements int
	// ReplacedUnits counts the slots nulled by replacements; each replacement
	// frees its matched length minus the one pointer unit.
	ReplacedUnits int
}

// Compressor rewrites a unit array into an equivalent, smaller one. A
// Compressor is single-use state for one run plus its options; Clear releases
// the auxiliary arrays.
type Compressor struct {
	opts     Options
	pageSize int

	work        *units.FastUnitArray
	n           int
	suffixArray []int32

	isNull      *bitset.BitSet
	nextNotNull []int32
	// localPointers[t] is the position of the sibling unit whose distance
	// targets t, or -1. Sibling chains give every unit at most one source.
	localPointers []int32
	absTargets    *bitset.BitSet
	absEnds       *bitset.BitSet

	pages []sync.Mutex
	// commitMu serializes commits so that canonical-span marks, liveness
	// re-checks and the actual writes form one atomic step. The page locks
	// bound who can be writing near a span; see DESIGN.md on why the marks
	// need the extra lock.
	commitMu sync.Mutex

	stats Stats
}

// New creates a Compressor. Panics when the page size would not exceed the
// maximum replacement length, which the two-lock scheme relies on.
func New(opts Options) *Compressor {
	if opts.MaxReplacementLen <= 0 {
		opts.MaxReplacementLen = DefaultMaxReplacementLen
	}
	if opts.MaxPartitionSize <= 0 {
		opts.MaxPartitionSize = DefaultMaxPartitionSize
	}
	c := &Compressor{opts: opts}
	// Five replacement lengths per page, rounded up to a whole number of
	// bitset words so no word straddles pages that share no lock.
	c.pageSize = (5*opts.MaxReplacementLen + 63) / 64 * 64
	if opts.MaxReplacementLen >= c.pageSize {
		panic(fmt.Sprintf("compress: max replacement length %d must be below page size %d",
			opts.MaxReplacementLen, c.pageSize))
	}
	return c
}

// Stats returns the counters of the last run.
func (c *Compressor) Stats() Stats {
	return c.stats
}

// Clear releases all auxiliary state.
func (c *Compressor) Clear() {
	if c.work != nil {
		c.work.Dispose()
	}
	c.work = nil
	c.suffixArray = nil
	c.isNull = nil
	c.nextNotNull = nil
	c.localPointers = nil
	c.absTargets = nil
	c.absEnds = nil
	c.pages = nil
}

// Compress returns a new Fast array with the same tree semantics as src and
// typically 20-60% of its size. src is not modified; the result shares its
// value mapping.
func (c *Compressor) Compress(ctx context.Context, src units.UnitArray) (*units.FastUnitArray, error) {
	c.stats = Stats{InputUnits: src.Size()}
	c.work = units.NewFastCopy(src)
	c.n = c.work.Size()
	if c.n < 3 {
		c.stats.OutputUnits = c.n
		return c.work, nil
	}

	c.index()

	var err error
	if c.opts.Parallel {
		err = c.searchParallel(ctx)
	} else {
		err = c.searchSerial(ctx)
	}
	if err != nil {
		return nil, err
	}

	result := c.compact()
	c.fixPointerLengths(result)
	c.stats.OutputUnits = result.Size()

	klog.Infof("lz compression: %s units in, %s units out (%.1f%%), %s replacements over %s partitions",
		humanize.Comma(int64(c.stats.InputUnits)),
		humanize.Comma(int64(c.stats.OutputUnits)),
		100*float64(c.stats.OutputUnits)/float64(c.stats.InputUnits),
		humanize.Comma(int64(c.stats.Replacements)),
		humanize.Comma(int64(c.stats.Partitions)))
	return result, nil
}

// index is phase A: the suffix array and the auxiliary pointer tables.
func (c *Compressor) index() {
	n := c.n
	c.isNull = bitset.New(uint(n))
	c.absTargets = bitset.New(uint(n))
	c.absEnds = bitset.New(uint(n))
	c.pages = make([]sync.Mutex, n/c.pageSize+2)

	c.nextNotNull = make([]int32, n)
	nextLive := n
	for i := n - 1; i >= 0; i-- {
		c.nextNotNull[i] = int32(nextLive - i)
		if !c.work.IsNull(i) {
			nextLive = i
		} else {
			c.isNull.Set(uint(i))
		}
	}

	c.localPointers = make([]int32, n)
	for i := range c.localPointers {
		c.localPointers[i] = -1
	}
	for i := 0; i < n; i++ {
		if c.isNull.Test(uint(i)) {
			continue
		}
		if c.work.IsAbsolutePointer(i) {
			c.absTargets.Set(uint(c.work.Distance(i)))
			c.absEnds.Set(uint(i))
			continue
		}
		if d := c.work.Distance(i); d > 0 {
			errutil.BugOn(i+d >= n, "sibling distance escapes array: %d+%d", i, d)
			if i+d < n {
				c.localPointers[i+d] = int32(i)
			}
		}
	}
	c.expandPointerLengths()
	c.markPointerSpanEnds()

	c.suffixArray = make([]int32, n)
	for i := range c.suffixArray {
		c.suffixArray[i] = int32(i)
	}
	cmp := units.SuffixComparator{Array: c.work, ByPosition: true}
	slices.SortFunc(c.suffixArray, func(a, b int32) bool {
		return cmp.Compare(int(a), int(b)) < 0
	})
}

// expandPointerLengths rewrites the length hint of every pre-existing
// absolute pointer from the physical convention of a finished tree to the
// expanded convention phase B accounts in. Fresh builder output has no
// pointers and this is a no-op.
func (c *Compressor) expandPointerLengths() {
	memo := make(map[int]int)
	var expand func(p int) int
	expand = func(p int) int {
		if v, ok := memo[p]; ok {
			return v
		}
		phys := c.work.ValueCode(p)
		memo[p] = phys // break accidental cycles at the physical value
		expanded := 0
		k := c.work.Distance(p)
		for consumed := 0; consumed < phys && k < c.n; k++ {
			if c.isNull.Test(uint(k)) {
				continue
			}
			consumed++
			if c.work.IsAbsolutePointer(k) && c.work.ValueCode(k) > 0 {
				expanded += expand(k)
			} else {
				expanded++
			}
		}
		memo[p] = expanded
		return expanded
	}

	for p := 0; p < c.n; p++ {
		if !c.isNull.Test(uint(p)) && c.work.IsAbsolutePointer(p) && c.work.ValueCode(p) > 0 {
			expand(p)
		}
	}
	for p, v := range memo {
		u, _ := c.work.Get(p)
		u.ValueCode = v
		c.work.Set(p, u)
	}
}

// markPointerSpanEnds sets the span-end flag on the last physical unit of
// every pre-existing pointer's target span.
func (c *Compressor) markPointerSpanEnds() {
	for p := 0; p < c.n; p++ {
		if c.isNull.Test(uint(p)) || !c.work.IsAbsolutePointer(p) {
			continue
		}
		remaining := c.work.ValueCode(p)
		if remaining == 0 {
			continue
		}
		last := -1
		for k := c.work.Distance(p); remaining > 0 && k < c.n; k++ {
			if c.isNull.Test(uint(k)) {
				continue
			}
			if c.work.IsAbsolutePointer(k) && c.work.ValueCode(k) > 0 {
				remaining -= c.work.ValueCode(k)
			} else {
				remaining--
			}
			last = k
		}
		if last >= 0 {
			c.absEnds.Set(uint(last))
		}
	}
}

// partition is a run of suffix-array positions sharing a two-unit prefix.
type partition struct {
	start, end int
}

func (c *Compressor) partitions() []partition {
	cmp := units.SuffixComparator{Array: c.work}
	var parts []partition
	for s := 0; s < c.n; {
		e := s + 1
		for e < c.n && e-s < c.opts.MaxPartitionSize &&
			cmp.EqualPrefix(int(c.suffixArray[s]), int(c.suffixArray[e])) {
			e++
		}
		if e-s >= 2 {
			parts = append(parts, partition{start: s, end: e})
		}
		s = e
	}
	c.stats.Partitions = len(parts)
	return parts
}

func (c *Compressor) searchSerial(ctx context.Context) error {
	for _, p := range c.partitions() {
		canon := int(c.suffixArray[p.start])
		for k := p.start + 1; k < p.end; k++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			jOrig := int(c.suffixArray[k])
			matched := c.applyRule2(c.matchSpan(canon, jOrig, nil))
			if len(matched) >= 2 {
				c.commit(canon, jOrig, matched)
			}
		}
	}
	return nil
}

func (c *Compressor) searchParallel(ctx context.Context) error {
	parts := c.partitions()
	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		workers = 1
	}

	feed := make(chan partition)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			buf := make([]int32, 0, c.opts.MaxReplacementLen)
			var firstErr error
			for p := range feed {
				// On error the remaining partitions still drain; the first
				// error is reported after the pool is done.
				if firstErr != nil {
					continue
				}
				firstErr = c.processPartition(ctx, p, buf)
			}
			return firstErr
		})
	}
	for _, p := range parts {
		feed <- p
	}
	close(feed)
	return g.Wait()
}

func (c *Compressor) processPartition(ctx context.Context, p partition, buf []int32) error {
	canon := int(c.suffixArray[p.start])
	for k := p.start + 1; k < p.end; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		jOrig := int(c.suffixArray[k])

		// Optimistic walk without locks; only a plausible span pays for the
		// page locks and the second, authoritative walk.
		if len(c.applyRule2(c.matchSpan(canon, jOrig, buf))) < 2 {
			continue
		}

		if err := c.commitLocked(canon, jOrig, buf); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compressor) commitLocked(canon, jOrig int, buf []int32) error {
	page := jOrig / c.pageSize
	c.pages[page].Lock()
	defer c.pages[page].Unlock()
	c.pages[page+1].Lock()
	defer c.pages[page+1].Unlock()

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	matched := c.applyRule2(c.matchSpan(canon, jOrig, buf))
	if len(matched) < 2 {
		return nil
	}
	if end := int(matched[len(matched)-1]); end/c.pageSize > page+1 {
		return fmt.Errorf("compress: unsynchronized page hit: span [%d, %d] crosses pages %d..%d",
			jOrig, end, page, end/c.pageSize)
	}
	c.commit(canon, jOrig, matched)
	return nil
}

// matchSpan walks the candidate at jOrig against the canonical at canon and
// returns the positions of the matched live units, in order. The walk stops
// at the first rule violation:
//
//   - at the maximum replacement length,
//   - when the canonical walk would reach the candidate,
//   - right after a unit flagged as the end of an earlier replacement span,
//   - at a unit some absolute pointer targets, or some sibling pointer from
//     before the candidate targets (the candidate's first unit excepted:
//     the pointer written there keeps such references valid),
//   - when the two sides skip differently sized null gaps, which would let
//     equal raw distances mean different sibling topology.
func (c *Compressor) matchSpan(canon, jOrig int, buf []int32) []int32 {
	matched := buf[:0]
	if canon >= jOrig || jOrig >= c.n {
		return matched
	}
	if c.isNull.Test(uint(canon)) || c.isNull.Test(uint(jOrig)) {
		return matched
	}
	i, j := canon, jOrig
	for len(matched) < c.opts.MaxReplacementLen {
		if i >= jOrig || j >= c.n {
			break
		}
		if c.isNull.Test(uint(i)) || c.isNull.Test(uint(j)) {
			break
		}
		if !c.work.EqualUnits(i, j) {
			break
		}
		// A pointer with an open length hint cannot be accounted for.
		if c.work.IsAbsolutePointer(j) && c.work.ValueCode(j) == 0 {
			break
		}
		if j != jOrig {
			if c.absTargets.Test(uint(j)) {
				break
			}
			if src := c.localPointers[j]; src >= 0 && int(src) < jOrig && c.siblingSourceAlive(int(src), j) {
				break
			}
		}
		matched = append(matched, int32(j))
		if c.absEnds.Test(uint(j)) {
			break
		}
		di, dj := int(c.nextNotNull[i]), int(c.nextNotNull[j])
		if di != dj {
			break
		}
		i += di
		j += dj
	}
	return matched
}

func (c *Compressor) siblingSourceAlive(src, target int) bool {
	return !c.isNull.Test(uint(src)) &&
		!c.work.IsAbsolutePointer(src) &&
		src+c.work.Distance(src) == target
}

// applyRule2 truncates the span until no inner sibling pointer escapes it,
// except to the first live unit after the span, which is exactly where a
// traversal resumes after a replaced fragment.
func (c *Compressor) applyRule2(matched []int32) []int32 {
	for len(matched) >= 2 {
		end := int(matched[len(matched)-1])
		next := end + int(c.nextNotNull[end])
		trunc := -1
		for idx, kk := range matched {
			k := int(kk)
			if c.work.IsAbsolutePointer(k) {
				continue
			}
			d := c.work.Distance(k)
			if d == 0 {
				continue
			}
			if t := k + d; t > end && t != next {
				trunc = idx
				break
			}
		}
		if trunc < 0 {
			return matched
		}
		matched = matched[:trunc]
	}
	return matched[:0]
}

// commit rewrites the candidate span to an absolute pointer at its first
// unit, nulls the rest, and maintains the auxiliary tables.
func (c *Compressor) commit(canon, jOrig int, matched []int32) {
	end := int(matched[len(matched)-1])
	canonLast := canon + (end - jOrig)

	// The pointer's length hint is the expanded unit count of the span:
	// stable no matter how later replacements rewrite the canonical's
	// interior. Phase D converts it to the physical convention.
	nofu := 0
	for _, kk := range matched {
		k := int(kk)
		if c.work.IsAbsolutePointer(k) && c.work.ValueCode(k) > 0 {
			nofu += c.work.ValueCode(k)
		} else {
			nofu++
		}
	}

	tailEnd := c.absEnds.Test(uint(end))
	next := end + int(c.nextNotNull[end])

	c.work.Set(jOrig, units.Unit{ValueCode: nofu, Distance: canon})
	c.absTargets.Set(uint(canon))
	c.absEnds.Set(uint(canonLast))
	if tailEnd {
		c.absEnds.Set(uint(jOrig))
	}

	for _, kk := range matched[1:] {
		k := int(kk)
		c.work.SetNull(k)
		c.isNull.Set(uint(k))
	}
	for p := jOrig; p <= end; p++ {
		c.nextNotNull[p] = int32(next - p)
	}

	c.stats.Replacements++
	c.stats.ReplacedUnits += len(matched) - 1
}

// compact is phase C: drop null slots and repair every distance the removal
// shifted.
func (c *Compressor) compact() *units.FastUnitArray {
	n := c.n
	emptyBefore := make([]int32, n+1)
	nulls := int32(0)
	for i := 0; i < n; i++ {
		emptyBefore[i] = nulls
		if c.isNull.Test(uint(i)) {
			nulls++
		}
	}
	emptyBefore[n] = nulls

	result := units.NewFastUnitArray(n - int(nulls))
	result.SetValueMapping(c.work.ValueMapping())
	for i := 0; i < n; i++ {
		u, ok := c.work.Get(i)
		if !ok {
			continue
		}
		if u.IsAbsolutePointer() {
			u.Distance -= int(emptyBefore[u.Distance])
		} else if u.Distance > 0 {
			u.Distance -= int(emptyBefore[i+u.Distance] - emptyBefore[i])
		}
		result.Add(u)
	}
	return result
}

// fixPointerLengths is phase D: convert every pointer's length hint from the
// expanded convention to the physical number of units to read at the target,
// where a nested pointer counts as one.
func (c *Compressor) fixPointerLengths(a *units.FastUnitArray) {
	n := a.Size()
	expanded := make(map[int]int)
	for i := 0; i < n; i++ {
		if a.IsAbsolutePointer(i) && a.ValueCode(i) > 0 {
			expanded[i] = a.ValueCode(i)
		}
	}
	for i, v := range expanded {
		physical := 0
		remaining := v
		for k := a.Distance(i); remaining > 0 && k < n; k++ {
			if nested, ok := expanded[k]; ok {
				remaining -= nested
			} else {
				remaining--
			}
			physical++
		}
		u, _ := a.Get(i)
		u.ValueCode = physical
		a.Set(i, u)
	}
}
