// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package btree implements an in-memory B+tree whose nodes carry individual
// read/write latches. Readers traverse it with lock coupling: a child is
// latched before its parent is released. Writers descend top-down with
// exclusive latches, splitting full nodes on the way, and back off instead of
// waiting on a latch.
package btree

import (
	"fmt"
	"runtime"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/rget/internal/base"
)

// DefaultCapacity is the default maximum number of entries in a leaf (and
// children in an internal node).
const DefaultCapacity = 32

// Node is a node of the tree. Leaves hold keys and values; internal nodes
// hold separator keys and children. Child i of an internal node holds keys k
// with keys[i-1] <= k < keys[i].
type Node struct {
	latch    sync.RWMutex
	id       uint64
	leaf     bool
	keys     [][]byte
	values   []base.RawValue
	children []*Node
}

// Leaf returns true if n is a leaf.
func (n *Node) Leaf() bool {
	return n.leaf
}

// ID returns an identifier unique within the tree.
func (n *Node) ID() uint64 {
	return n.id
}

func (n *Node) full(capacity int) bool {
	if n.leaf {
		return len(n.keys) >= capacity
	}
	return len(n.children) >= capacity
}

// find returns the index where key is or should be inserted into a leaf.
// 'found' is true if the key already exists at the given index.
func (n *Node) find(cmp base.Compare, key []byte) (index int, found bool) {
	i := sort.Search(len(n.keys), func(i int) bool {
		return cmp(n.keys[i], key) >= 0
	})
	return i, i < len(n.keys) && cmp(n.keys[i], key) == 0
}

// childIndex returns the index of the child whose key span contains key.
func (n *Node) childIndex(cmp base.Compare, key []byte) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return cmp(n.keys[i], key) > 0
	})
}

// childrenInRange returns the half-open index interval [lo, hi) of children
// whose key spans intersect r.
func (n *Node) childrenInRange(cmp base.Compare, r base.KeyRange) (lo, hi int) {
	lo, hi = 0, len(n.children)
	if r.Start != nil {
		lo = n.childIndex(cmp, r.Start)
	}
	if r.End != nil {
		// Child i starts at keys[i-1]; it can only hold keys <= End (< End when
		// right-open) if that separator does.
		hi = 1 + sort.Search(len(n.keys), func(i int) bool {
			return !r.BeforeEnd(cmp, n.keys[i])
		})
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// LeafEntriesInRange returns the entries of leaf n that lie within r, in key
// order. The returned slice does not alias the leaf, so it stays valid once n
// is unlatched. REQUIRES: n is a latched leaf.
func (n *Node) LeafEntriesInRange(cmp base.Compare, r base.KeyRange) []base.Entry {
	if !n.leaf {
		panic("btree: LeafEntriesInRange on internal node")
	}
	lo, hi := 0, len(n.keys)
	if r.Start != nil {
		lo = sort.Search(len(n.keys), func(i int) bool {
			return r.AfterStart(cmp, n.keys[i])
		})
	}
	if r.End != nil {
		hi = sort.Search(len(n.keys), func(i int) bool {
			return !r.BeforeEnd(cmp, n.keys[i])
		})
	}
	if hi <= lo {
		return nil
	}
	entries := make([]base.Entry, 0, hi-lo)
	for i := lo; i < hi; i++ {
		entries = append(entries, base.Entry{Key: n.keys[i], Value: n.values[i]})
	}
	return entries
}

// BTree is an implementation of a B+tree with per-node latches.
//
// Set and Delete may be called concurrently with each other and with readers
// using LatchRoot, LatchChildrenInRange and Unlatch.
type BTree struct {
	cmp      base.Compare
	capacity int

	// rootMu protects the root pointer. Readers latch the root while holding
	// it shared. Writers hold it exclusively until the top of their descent is
	// latched so that a root split is atomic with respect to new readers.
	rootMu sync.RWMutex
	root   *Node

	length atomic.Int64
	nextID atomic.Uint64

	// Shared latches currently held, and latches acquired over the tree's
	// lifetime, by readers.
	latched  atomic.Int64
	acquired atomic.Int64
}

// MinCapacity is the smallest node capacity. Splitting a full internal node
// must leave both halves with at least two children.
const MinCapacity = 4

// New returns an empty tree ordered by cmp. A capacity of zero selects
// DefaultCapacity; any other capacity below MinCapacity is raised to it.
func New(cmp base.Compare, capacity int) *BTree {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	capacity = max(capacity, MinCapacity)
	t := &BTree{cmp: cmp, capacity: capacity}
	t.root = t.newNode(true)
	return t
}

func (t *BTree) newNode(leaf bool) *Node {
	return &Node{id: t.nextID.Add(1), leaf: leaf}
}

// split splits the exclusively latched node n in half, returning the
// separator and the new right sibling. The sibling is unpublished until the
// caller inserts it into the (exclusively latched) parent.
func (t *BTree) split(n *Node) ([]byte, *Node) {
	right := t.newNode(n.leaf)
	if n.leaf {
		mid := len(n.keys) / 2
		right.keys = slices.Clone(n.keys[mid:])
		right.values = slices.Clone(n.values[mid:])
		n.keys = slices.Clone(n.keys[:mid])
		n.values = slices.Clone(n.values[:mid])
		return right.keys[0], right
	}
	mid := len(n.children) / 2
	sep := n.keys[mid-1]
	right.keys = slices.Clone(n.keys[mid:])
	right.children = slices.Clone(n.children[mid:])
	n.keys = slices.Clone(n.keys[:mid-1])
	n.children = slices.Clone(n.children[:mid])
	return sep, right
}

// Set adds the given key and value to the tree, replacing any existing value.
// The previous value is returned if there was one. The key is copied.
func (t *BTree) Set(key []byte, value base.RawValue) (old base.RawValue, replaced bool) {
	key = slices.Clone(key)
	if key == nil {
		key = []byte{}
	}
	n := t.descend(key, true /* split */)
	defer n.latch.Unlock()

	i, found := n.find(t.cmp, key)
	if found {
		old = n.values[i]
		n.values[i] = value
		return old, true
	}
	n.keys = slices.Insert(n.keys, i, key)
	n.values = slices.Insert(n.values, i, value)
	t.length.Add(1)
	return base.RawValue{}, false
}

// Delete removes key from the tree, returning its value if it was present.
// Leaves are not merged or rebalanced; an emptied leaf stays in place.
func (t *BTree) Delete(key []byte) (old base.RawValue, found bool) {
	n := t.descend(key, false /* split */)
	defer n.latch.Unlock()

	i, found := n.find(t.cmp, key)
	if !found {
		return base.RawValue{}, false
	}
	old = n.values[i]
	n.keys = slices.Delete(n.keys, i, i+1)
	n.values = slices.Delete(n.values, i, i+1)
	t.length.Add(-1)
	return old, true
}

// descend returns the leaf whose key span contains key, latched exclusively.
// If split is set, full nodes on the way down are split.
//
// Readers hold latches across slices and calls, so a writer must never wait
// for a latch while holding one: a pending writer blocks new readers of the
// node it waits on. A writer that finds a latch taken releases its latch and
// restarts from the root.
func (t *BTree) descend(key []byte, split bool) *Node {
	for {
		if n, ok := t.tryDescend(key, split); ok {
			return n
		}
		runtime.Gosched()
	}
}

func (t *BTree) tryDescend(key []byte, split bool) (*Node, bool) {
	t.rootMu.Lock()
	n := t.root
	if !n.latch.TryLock() {
		t.rootMu.Unlock()
		return nil, false
	}
	if split && n.full(t.capacity) {
		newRoot := t.newNode(false)
		newRoot.latch.Lock()
		sep, right := t.split(n)
		newRoot.keys = [][]byte{sep}
		newRoot.children = []*Node{n, right}
		n.latch.Unlock()
		t.root = newRoot
		n = newRoot
	}
	t.rootMu.Unlock()

	for !n.leaf {
		i := n.childIndex(t.cmp, key)
		c := n.children[i]
		if !c.latch.TryLock() {
			n.latch.Unlock()
			return nil, false
		}
		if split && c.full(t.capacity) {
			sep, right := t.split(c)
			n.keys = slices.Insert(n.keys, i, sep)
			n.children = slices.Insert(n.children, i+1, right)
			if t.cmp(key, sep) >= 0 {
				// right is only reachable through n, so this never blocks.
				right.latch.Lock()
				c.latch.Unlock()
				c = right
			}
		}
		n.latch.Unlock()
		n = c
	}
	return n, true
}

// LatchRoot returns the root, latched shared.
func (t *BTree) LatchRoot() *Node {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	t.root.latch.RLock()
	t.noteLatched(1)
	return t.root
}

// LatchChildrenInRange latches, in key order, the children of n whose key
// spans intersect r and returns them. n stays latched. REQUIRES: n is a
// latched internal node.
func (t *BTree) LatchChildrenInRange(n *Node, r base.KeyRange) []*Node {
	if n.leaf {
		panic("btree: LatchChildrenInRange on leaf")
	}
	lo, hi := n.childrenInRange(t.cmp, r)
	if lo == hi {
		return nil
	}
	children := make([]*Node, 0, hi-lo)
	for _, c := range n.children[lo:hi] {
		c.latch.RLock()
		children = append(children, c)
	}
	t.noteLatched(len(children))
	return children
}

// Unlatch releases a shared latch obtained through LatchRoot or
// LatchChildrenInRange.
func (t *BTree) Unlatch(n *Node) {
	t.latched.Add(-1)
	n.latch.RUnlock()
}

func (t *BTree) noteLatched(n int) {
	t.latched.Add(int64(n))
	t.acquired.Add(int64(n))
}

// Latched returns the number of shared latches currently held by readers.
func (t *BTree) Latched() int64 {
	return t.latched.Load()
}

// LatchesAcquired returns the number of shared latches acquired by readers
// over the lifetime of the tree.
func (t *BTree) LatchesAcquired() int64 {
	return t.acquired.Load()
}

// Compare returns the comparer the tree is ordered by.
func (t *BTree) Compare() base.Compare {
	return t.cmp
}

// Capacity returns the maximum fan-out of a node.
func (t *BTree) Capacity() int {
	return t.capacity
}

// Len returns the number of keys currently in the tree.
func (t *BTree) Len() int {
	return int(t.length.Load())
}

// Height returns the height of the tree.
func (t *BTree) Height() int {
	t.rootMu.RLock()
	n := t.root
	n.latch.RLock()
	t.rootMu.RUnlock()
	h := 1
	for !n.leaf {
		c := n.children[0]
		c.latch.RLock()
		n.latch.RUnlock()
		n = c
		h++
	}
	n.latch.RUnlock()
	return h
}

// Ascend calls fn for every entry within r, in key order, until fn returns
// false. The whole root-to-leaf path is held latched while fn runs, so Ascend
// is only meant for verification and small scans.
func (t *BTree) Ascend(r base.KeyRange, fn func(key []byte, value base.RawValue) bool) {
	t.rootMu.RLock()
	root := t.root
	root.latch.RLock()
	t.rootMu.RUnlock()
	defer root.latch.RUnlock()
	t.ascend(root, r, fn)
}

func (t *BTree) ascend(n *Node, r base.KeyRange, fn func([]byte, base.RawValue) bool) bool {
	if n.leaf {
		for _, e := range n.LeafEntriesInRange(t.cmp, r) {
			if !fn(e.Key, e.Value) {
				return false
			}
		}
		return true
	}
	lo, hi := n.childrenInRange(t.cmp, r)
	for _, c := range n.children[lo:hi] {
		c.latch.RLock()
		ok := t.ascend(c, r, fn)
		c.latch.RUnlock()
		if !ok {
			return false
		}
	}
	return true
}

// Verify panics if the tree's ordering or balance invariants are violated.
// It must not run concurrently with writers.
func (t *BTree) Verify() {
	leafDepth := -1
	t.root.verify(t.cmp, nil, nil, 0, &leafDepth)
}

func (n *Node) verify(cmp base.Compare, lower, upper []byte, depth int, leafDepth *int) {
	for i := 1; i < len(n.keys); i++ {
		if cmp(n.keys[i-1], n.keys[i]) >= 0 {
			panic(fmt.Sprintf("keys are not sorted @ %d: %q >= %q", i, n.keys[i-1], n.keys[i]))
		}
	}
	for _, k := range n.keys {
		if lower != nil && cmp(k, lower) < 0 {
			panic(fmt.Sprintf("key %q below lower bound %q", k, lower))
		}
		if upper != nil && cmp(k, upper) >= 0 {
			panic(fmt.Sprintf("key %q not below upper bound %q", k, upper))
		}
	}
	if n.leaf {
		if len(n.keys) != len(n.values) {
			panic(fmt.Sprintf("leaf has %d keys but %d values", len(n.keys), len(n.values)))
		}
		if *leafDepth == -1 {
			*leafDepth = depth
		} else if *leafDepth != depth {
			panic(fmt.Sprintf("leaves at depths %d and %d", *leafDepth, depth))
		}
		return
	}
	if len(n.children) != len(n.keys)+1 {
		panic(fmt.Sprintf("internal node has %d keys but %d children", len(n.keys), len(n.children)))
	}
	if len(n.children) < 2 {
		panic(fmt.Sprintf("internal node at depth %d has %d children", depth, len(n.children)))
	}
	for i, c := range n.children {
		lo, hi := lower, upper
		if i > 0 {
			lo = n.keys[i-1]
		}
		if i < len(n.keys) {
			hi = n.keys[i]
		}
		c.verify(cmp, lo, hi, depth+1, leafDepth)
	}
}
