package llt

import (
	"lltrie/errutil"
	"lltrie/units"
)

// frame is a saved position to resume at when the current back-pointer span
// is exhausted. Frames form a pure forward chain through ret indexes into
// the traverser's arena.
type frame struct {
	pos         int
	unitsToRead int
	nested      bool
	ret         int32
}

// Traverser is a stateful position inside a possibly compressed unit array.
// It follows absolute pointers transparently, so the caller sees an ordinary
// trie. The frame arena is reused across lookups; a Traverser is not safe
// for concurrent use, but separate Traversers over one compacted array are.
type Traverser struct {
	arr    units.UnitArray
	cur    frame
	frames []frame
}

// NewTraverser creates a traverser positioned at the root unit.
func NewTraverser(arr units.UnitArray) *Traverser {
	t := &Traverser{arr: arr}
	t.Reset()
	return t
}

// Reset returns the traverser to the root unit and drops all frames.
func (t *Traverser) Reset() {
	t.cur = frame{ret: -1}
	t.frames = t.frames[:0]
}

// resolvePointer follows absolute pointers at the current position until a
// node unit is reached, pushing resume frames along the way.
func (t *Traverser) resolvePointer() {
	for t.arr.IsAbsolutePointer(t.cur.pos) {
		target := t.arr.Distance(t.cur.pos)
		length := t.arr.ValueCode(t.cur.pos)
		if !t.cur.nested || t.cur.unitsToRead > 1 {
			resume := frame{pos: t.cur.pos + 1, nested: t.cur.nested, ret: t.cur.ret}
			if t.cur.nested {
				resume.unitsToRead = t.cur.unitsToRead - 1
			}
			t.frames = append(t.frames, resume)
			t.cur.ret = int32(len(t.frames) - 1)
		}
		// When the pointer is the last unit of its span, the inner span
		// returns straight to the span's own resume position.
		t.cur.pos = target
		t.cur.unitsToRead = length
		t.cur.nested = length != 0
	}
}

func (t *Traverser) popReturn() {
	errutil.BugOn(t.cur.ret < 0, "return chain underflow at position %d", t.cur.pos)
	t.cur = t.frames[t.cur.ret]
}

// nextLevel enters the child run of the current node.
func (t *Traverser) nextLevel() {
	if t.cur.nested && t.cur.unitsToRead == 1 {
		t.popReturn()
		return
	}
	t.cur.pos++
	if t.cur.nested {
		t.cur.unitsToRead--
	}
}

// nextChild follows the sibling distance d; a distance that leaves the
// current back-pointer span resumes at the saved return position, which is
// exactly the unit that followed the replaced fragment.
func (t *Traverser) nextChild(d int) {
	if t.cur.nested && d >= t.cur.unitsToRead {
		t.popReturn()
		return
	}
	t.cur.pos += d
	if t.cur.nested {
		t.cur.unitsToRead -= d
	}
}

// Child descends from the current node to the child carrying symbol.
// Siblings are ordered by value code, so the walk stops early at the first
// larger code. On failure the position is left mid-walk; Reset before reuse.
func (t *Traverser) Child(symbol int32) bool {
	code := t.arr.MapToValueCode(symbol)
	if code < 0 {
		return false
	}
	if !t.arr.IsWordContinued(t.cur.pos) {
		return false
	}
	t.nextLevel()
	for {
		t.resolvePointer()
		vc := t.arr.ValueCode(t.cur.pos)
		if vc == code {
			return true
		}
		if vc > code {
			return false
		}
		d := t.arr.Distance(t.cur.pos)
		if d == 0 {
			return false
		}
		t.nextChild(d)
	}
}

// Descend performs the Child step for every symbol of path, starting from
// the root.
func (t *Traverser) Descend(path []int32) bool {
	t.Reset()
	for _, s := range path {
		if !t.Child(s) {
			return false
		}
	}
	return true
}

// IsWordEnd reports whether the current node terminates a stored key.
func (t *Traverser) IsWordEnd() bool {
	return t.arr.IsWordEnd(t.cur.pos)
}

// DataCode returns the payload of the current node.
func (t *Traverser) DataCode() int {
	return t.arr.DataCode(t.cur.pos)
}

// Data descends path and returns the payload of its final node, with
// ok=false when the path is absent or does not end a key.
func (t *Traverser) Data(path []int32) (int, bool) {
	if !t.Descend(path) {
		return 0, false
	}
	if !t.IsWordEnd() {
		return 0, false
	}
	return t.DataCode(), true
}
