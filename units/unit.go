// Package units implements the flat unit-array representation of a
// linked-list trie. A unit describes one trie edge; the position of a unit in
// the array and its sibling distance encode the tree shape without per-node
// pointers. Two representations share one accessor interface: a mutable Fast
// array of primitive slices used while building and compressing, and a
// read-only Compact array of bit-packed fields with optional deduplication of
// identical units.
package units

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Unit is the atom of the trie representation.
//
// A unit with both flags false is not a node but an absolute pointer into the
// array: Distance holds the absolute target index and ValueCode the number of
// units to read there (0 = read to the fragment's natural end). A slot whose
// flags are false and whose Distance equals its own index is a null slot left
// behind by compression.
type Unit struct {
	ValueCode     int
	Distance      int
	DataCode      int
	WordEnd       bool
	WordContinued bool
}

// IsAbsolutePointer reports whether the unit is an absolute pointer (or a
// null slot; distinguishing the two needs the unit's index).
func (u Unit) IsAbsolutePointer() bool {
	return !u.WordEnd && !u.WordContinued
}

func (u Unit) orderKey() int {
	k := u.ValueCode << 2
	if u.WordEnd {
		k |= 2
	}
	if u.WordContinued {
		k |= 1
	}
	return k
}

// Compare orders units by (value code, word end, word continued), then by
// distance, then by data code for word ends.
func (u Unit) Compare(v Unit) int {
	ka, kb := u.orderKey(), v.orderKey()
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	if u.Distance != v.Distance {
		if u.Distance < v.Distance {
			return -1
		}
		return 1
	}
	if u.WordEnd && u.DataCode != v.DataCode {
		if u.DataCode < v.DataCode {
			return -1
		}
		return 1
	}
	return 0
}

// Hash returns a 64-bit hash of all unit fields, used to bucket units during
// deduplication.
func (u Unit) Hash() uint64 {
	var b [14]byte
	binary.LittleEndian.PutUint32(b[0:], uint32(u.ValueCode))
	binary.LittleEndian.PutUint32(b[4:], uint32(u.Distance))
	binary.LittleEndian.PutUint32(b[8:], uint32(u.DataCode))
	if u.WordEnd {
		b[12] = 1
	}
	if u.WordContinued {
		b[13] = 1
	}
	return xxh3.Hash(b[:])
}
