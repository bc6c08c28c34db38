// Package llt implements the linked-list tree: a read-optimized trie stored
// as a flat unit array, built from a conventional mutable trie, optionally
// LZ-compressed, and queried through a pointer-chasing traverser.
package llt

import (
	"sort"
)

// SourceNode is the minimal view of a builder input tree. The builder only
// iterates children, reads the value and optional payload, and asks whether
// a node terminates a key.
type SourceNode interface {
	Value() int32
	Terminal() bool
	Data() int
	Children() []SourceNode
}

// childClearer lets the builder dismantle an input tree node-by-node to
// halve peak memory while building.
type childClearer interface {
	ClearChildren()
}

// Node is the conventional mutable trie used as builder input. Children are
// kept sorted by raw symbol value.
type Node struct {
	value    int32
	data     int
	terminal bool
	children []*Node
}

var _ SourceNode = (*Node)(nil)

// NewNode creates an empty root node.
func NewNode() *Node {
	return &Node{}
}

// Insert adds the key spelled by symbols, storing data on its final node.
func (n *Node) Insert(symbols []int32, data int) {
	cur := n
	for _, s := range symbols {
		cur = cur.child(s)
	}
	cur.terminal = true
	cur.data = data
}

// InsertString adds the runes of s as a key.
func (n *Node) InsertString(s string, data int) {
	n.Insert([]int32(s), data)
}

func (n *Node) child(symbol int32) *Node {
	i := sort.Search(len(n.children), func(i int) bool {
		return n.children[i].value >= symbol
	})
	if i < len(n.children) && n.children[i].value == symbol {
		return n.children[i]
	}
	ch := &Node{value: symbol}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = ch
	return ch
}

func (n *Node) Value() int32 {
	return n.value
}

func (n *Node) Terminal() bool {
	return n.terminal
}

func (n *Node) Data() int {
	return n.data
}

func (n *Node) Children() []SourceNode {
	out := make([]SourceNode, len(n.children))
	for i, ch := range n.children {
		out[i] = ch
	}
	return out
}

// ClearChildren drops the children so the node can be collected while a
// build is still walking the rest of the tree.
func (n *Node) ClearChildren() {
	n.children = nil
}

// NodeCount returns the number of nodes below and including n.
func (n *Node) NodeCount() int {
	count := 1
	for _, ch := range n.children {
		count += ch.NodeCount()
	}
	return count
}
