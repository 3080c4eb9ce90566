// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/rget/internal/invariants"
)

// KeyValue is a key and the provider of its value. Whoever holds a KeyValue
// returned by an iterator owns its ValueProvider and must release it.
type KeyValue struct {
	Key   []byte
	Value *ValueProvider
}

// kvIterator is a forward-only, non-restartable sequence of KeyValues in
// strictly ascending key order.
type kvIterator interface {
	// Next returns the next KeyValue, or ok=false once the sequence is
	// exhausted. After an error, Next keeps returning that error.
	Next(ctx context.Context) (kv KeyValue, ok bool, err error)
	// Close releases every resource the iterator still holds. Close is
	// idempotent.
	Close() error
}

// nodeQueue is a queue of latched nodes at one depth of the tree, in key
// order.
type nodeQueue struct {
	nodes []Node
	pos   int
}

func (q *nodeQueue) empty() bool {
	return q.pos == len(q.nodes)
}

func (q *nodeQueue) front() Node {
	return q.nodes[q.pos]
}

func (q *nodeQueue) popFront() {
	q.nodes[q.pos] = nil
	q.pos++
}

func (q *nodeQueue) pushBack(nodes ...Node) {
	q.nodes = append(q.nodes, nodes...)
}

// sliceIter yields the keys of one slice that lie within a range, in order,
// by walking the slice's tree with lock coupling: a node's in-range children
// are latched before the node itself is unlatched.
//
// The frontier of latched, unresolved nodes is kept as a stack of per-depth
// queues. Each queue is in key order and every node of a queue is to the right
// (in key order) of every node in the queues above it, so the front of the
// top queue is always the leftmost unresolved node.
//
// While fewer than threshold nodes are latched the walk is breadth-first: the
// front of the bottom (shallowest) queue is resolved and its children are
// appended to the queue one level deeper. In a balanced tree the frontier then
// spans at most two adjacent depths, and once the shallower one is exhausted
// the deeper one is exactly the next level in key order. When a leaf reaches
// the front of the bottom queue every latched node is a leaf, and they are
// resolved left to right.
//
// Once threshold nodes are latched the walk turns depth-first for the rest of
// the iteration: the front of the top queue is resolved and its children are
// pushed as a new top queue. Popping from the back of a queue instead would
// emit keys in reverse order. A tree whose leaves sit at different depths also
// turns the walk depth-first, as soon as a leaf reaches the bottom front while
// deeper nodes are still queued.
type sliceIter struct {
	index     int
	txn       Transaction
	cmp       Compare
	r         KeyRange
	threshold int

	started    bool
	depthFirst bool
	levels     []*nodeQueue
	latched    int

	// pending holds the entries captured from the most recently resolved leaf
	// that have not been returned yet.
	pending    []KeyValue
	pendingPos int

	prevKey []byte
	err     error
	closed  bool
	stats   *SliceStats
}

var _ kvIterator = (*sliceIter)(nil)

func newSliceIter(
	index int, txn Transaction, cmp Compare, r KeyRange, threshold int, stats *SliceStats,
) *sliceIter {
	if stats == nil {
		stats = &SliceStats{}
	}
	return &sliceIter{
		index:     index,
		txn:       txn,
		cmp:       cmp,
		r:         r,
		threshold: threshold,
		stats:     stats,
	}
}

// Next implements kvIterator.
func (i *sliceIter) Next(ctx context.Context) (KeyValue, bool, error) {
	if i.err != nil {
		return KeyValue{}, false, i.err
	}
	if i.closed {
		return KeyValue{}, false, errors.AssertionFailedf("rget: slice %d iterator used after close", redact.Safe(i.index))
	}
	for {
		if i.pendingPos < len(i.pending) {
			kv := i.pending[i.pendingPos]
			i.pending[i.pendingPos] = KeyValue{}
			i.pendingPos++
			if invariants.Enabled {
				if i.prevKey != nil && i.cmp(i.prevKey, kv.Key) >= 0 {
					kv.Value.Release()
					return KeyValue{}, false, i.fail(errors.AssertionFailedf(
						"rget: slice %d emitted %q after %q", redact.Safe(i.index), kv.Key, i.prevKey))
				}
				i.prevKey = kv.Key
			}
			i.stats.KeysEmitted++
			return kv, true, nil
		}
		if !i.started {
			i.started = true
			if err := i.start(ctx); err != nil {
				return KeyValue{}, false, i.fail(err)
			}
		}
		if len(i.levels) == 0 {
			return KeyValue{}, false, nil
		}
		if err := i.step(ctx); err != nil {
			return KeyValue{}, false, i.fail(err)
		}
	}
}

func (i *sliceIter) start(ctx context.Context) error {
	if i.r.Empty(i.cmp) {
		return nil
	}
	root, err := i.txn.LockRoot(ctx)
	if err != nil {
		return err
	}
	i.noteLatched(1)
	i.levels = append(i.levels, &nodeQueue{nodes: []Node{root}})
	return nil
}

// step resolves one latched node: a leaf's in-range entries are captured into
// pending, an internal node's in-range children are latched and added to the
// frontier. Either way the node is then unlatched.
func (i *sliceIter) step(ctx context.Context) error {
	if !i.depthFirst && (i.latched >= i.threshold ||
		(len(i.levels) > 1 && i.levels[0].front().Leaf())) {
		i.depthFirst = true
		i.stats.SwitchedToDepthFirst = true
	}
	lvl := 0
	if i.depthFirst {
		lvl = len(i.levels) - 1
	}
	q := i.levels[lvl]
	n := q.front()

	if n.Leaf() {
		i.stats.LeavesVisited++
		entries := i.txn.LeafEntriesInRange(n, i.r)
		i.pending = i.pending[:0]
		i.pendingPos = 0
		for _, e := range entries {
			i.pending = append(i.pending, KeyValue{Key: e.Key, Value: newValueProvider(e.Value, i.txn)})
		}
		q.popFront()
		i.unlock(n)
		if q.empty() {
			i.levels = append(i.levels[:lvl], i.levels[lvl+1:]...)
		}
		return nil
	}

	// On error n is still at the front of q and is unlatched with the rest of
	// the frontier.
	children, err := i.txn.ChildrenInRange(ctx, n, i.r)
	if err != nil {
		return err
	}
	i.noteLatched(len(children))
	q.popFront()
	i.unlock(n)

	if i.depthFirst {
		if q.empty() {
			i.levels = i.levels[:lvl]
		}
		if len(children) > 0 {
			i.levels = append(i.levels, &nodeQueue{nodes: children})
		}
		return nil
	}
	if len(children) > 0 {
		if len(i.levels) == 1 {
			i.levels = append(i.levels, &nodeQueue{})
		}
		i.levels[1].pushBack(children...)
	}
	if q.empty() {
		i.levels = i.levels[1:]
	}
	return nil
}

func (i *sliceIter) noteLatched(n int) {
	i.latched += n
	i.stats.NodesLatched += n
	i.stats.PeakLatched = max(i.stats.PeakLatched, i.latched)
}

func (i *sliceIter) unlock(n Node) {
	i.txn.Unlock(n)
	i.latched = invariants.SafeSub(i.latched, 1)
}

// fail records err, tears down the frontier and returns err annotated with
// the slice index.
func (i *sliceIter) fail(err error) error {
	i.err = errors.Wrapf(err, "slice %d", redact.Safe(i.index))
	i.release()
	return i.err
}

// release unlatches every node in the frontier and releases every captured
// entry that was never returned.
func (i *sliceIter) release() {
	for _, q := range i.levels {
		for ; !q.empty(); q.popFront() {
			i.unlock(q.front())
		}
	}
	i.levels = nil
	for ; i.pendingPos < len(i.pending); i.pendingPos++ {
		i.pending[i.pendingPos].Value.Release()
		i.pending[i.pendingPos] = KeyValue{}
	}
	i.pending = nil
	i.pendingPos = 0
}

// Close implements kvIterator.
func (i *sliceIter) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.release()
	if invariants.Enabled && i.latched != 0 {
		return errors.AssertionFailedf("rget: slice %d closed with %d nodes latched",
			redact.Safe(i.index), redact.Safe(i.latched))
	}
	return nil
}
