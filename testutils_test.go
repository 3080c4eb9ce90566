// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/rget/internal/base"
	"github.com/cockroachdb/rget/internal/blob"
	"github.com/cockroachdb/rget/internal/btree"
	"github.com/stretchr/testify/require"
)

// testStore is a Store whose slices are B-trees with explicitly assigned keys.
// It tracks every transaction and latch so tests can check that a scan
// releases everything it acquires.
type testStore struct {
	slices []*testSlice
	blobs  *blob.Store
}

type testSlice struct {
	index int
	tree  *btree.BTree
	blobs *blob.Store

	// beginErr, if set, fails BeginRead.
	beginErr error
	// failLatch, if positive, fails the failLatch'th latch request of every
	// transaction and every later one.
	failLatch int

	mu struct {
		sync.Mutex
		begun int
	}
	ended      int
	latchCalls int
	held       int
	peak       int
}

// newTestStore returns a store with one slice per element of keys. Every key
// k gets the value "v"+k, stored out-of-line if it is longer than
// largeThreshold (when largeThreshold is positive).
func newTestStore(capacity, largeThreshold int, keys ...[]string) *testStore {
	s := &testStore{blobs: blob.NewStore(blob.SnappyCompression)}
	for i, ks := range keys {
		sl := &testSlice{index: i, tree: btree.New(bytes.Compare, capacity), blobs: s.blobs}
		for _, k := range ks {
			v := []byte("v" + k)
			raw := base.MakeInPlaceValue(v)
			if largeThreshold > 0 && len(v) > largeThreshold {
				raw = base.MakeLargeValue(s.blobs.Put(v).Encode(nil))
			}
			sl.tree.Set([]byte(k), raw)
		}
		s.slices = append(s.slices, sl)
	}
	return s
}

func (s *testStore) Slices() []Slice {
	res := make([]Slice, len(s.slices))
	for i := range s.slices {
		res[i] = s.slices[i]
	}
	return res
}

func (s *testStore) close() {
	s.blobs.Close()
}

func (s *testStore) latchCalls() int {
	var n int
	for _, sl := range s.slices {
		n += sl.latchCalls
	}
	return n
}

// requireReleased checks that no latch, transaction or blob pin is held.
func (s *testStore) requireReleased(t *testing.T) {
	t.Helper()
	for _, sl := range s.slices {
		require.Equal(t, 0, sl.held, "slice %d latches", sl.index)
		require.EqualValues(t, 0, sl.tree.Latched(), "slice %d tree latches", sl.index)
		require.Equal(t, sl.begun(), sl.ended, "slice %d transactions", sl.index)
	}
	require.EqualValues(t, 0, s.blobs.Pins())
}

func (s *testSlice) begun() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.begun
}

func (s *testSlice) BeginRead(ctx context.Context) (Transaction, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.begun++
	return &testTxn{s: s}, nil
}

type testTxn struct {
	s     *testSlice
	calls int
	ended bool
}

func (t *testTxn) latch(ctx context.Context) error {
	if t.ended {
		return errors.AssertionFailedf("latch after end")
	}
	t.s.latchCalls++
	t.calls++
	if t.s.failLatch > 0 && t.calls >= t.s.failLatch {
		return base.LockFailuref("refused latch %d", redact.Safe(t.calls))
	}
	if err := ctx.Err(); err != nil {
		return base.MarkLockFailure(err)
	}
	return nil
}

func (t *testTxn) noteLatched(n int) {
	t.s.held += n
	t.s.peak = max(t.s.peak, t.s.held)
}

func (t *testTxn) LockRoot(ctx context.Context) (Node, error) {
	if err := t.latch(ctx); err != nil {
		return nil, err
	}
	t.noteLatched(1)
	return t.s.tree.LatchRoot(), nil
}

func (t *testTxn) ChildrenInRange(ctx context.Context, n Node, r KeyRange) ([]Node, error) {
	if err := t.latch(ctx); err != nil {
		return nil, err
	}
	children := t.s.tree.LatchChildrenInRange(n.(*btree.Node), r)
	t.noteLatched(len(children))
	res := make([]Node, len(children))
	for i := range children {
		res[i] = children[i]
	}
	return res, nil
}

func (t *testTxn) Unlock(n Node) {
	t.s.held--
	t.s.tree.Unlatch(n.(*btree.Node))
}

func (t *testTxn) LeafEntriesInRange(n Node, r KeyRange) []Entry {
	return n.(*btree.Node).LeafEntriesInRange(t.s.tree.Compare(), r)
}

func (t *testTxn) AcquireBlob(v RawValue) Blob {
	return t.s.blobs.Acquire(v.ValueOrHandle)
}

func (t *testTxn) End() error {
	if t.ended {
		return errors.AssertionFailedf("transaction ended twice")
	}
	t.ended = true
	t.s.ended++
	return nil
}

// fakeNode is a node of a hand-built tree, which unlike a B-tree may have
// leaves at different depths. lo and hi bound the keys of its subtree.
type fakeNode struct {
	entries  []Entry
	children []*fakeNode
	lo, hi   []byte
}

func (n *fakeNode) Leaf() bool {
	return n.children == nil
}

// fakeLeaf returns a leaf holding the given keys with in-place values.
func fakeLeaf(keys ...string) *fakeNode {
	n := &fakeNode{}
	for _, k := range keys {
		n.entries = append(n.entries, Entry{Key: []byte(k), Value: base.MakeInPlaceValue([]byte("v" + k))})
	}
	n.lo, n.hi = n.entries[0].Key, n.entries[len(n.entries)-1].Key
	return n
}

func fakeInternal(children ...*fakeNode) *fakeNode {
	return &fakeNode{children: children, lo: children[0].lo, hi: children[len(children)-1].hi}
}

// keys returns the keys of the subtree in order.
func (n *fakeNode) keys() []string {
	if n.Leaf() {
		var res []string
		for _, e := range n.entries {
			res = append(res, string(e.Key))
		}
		return res
	}
	var res []string
	for _, c := range n.children {
		res = append(res, c.keys()...)
	}
	return res
}

// fakeTxn is a Transaction over a hand-built tree. Latches are only counted.
type fakeTxn struct {
	root    *fakeNode
	held    int
	latched map[*fakeNode]bool
}

func newFakeTxn(root *fakeNode) *fakeTxn {
	return &fakeTxn{root: root, latched: make(map[*fakeNode]bool)}
}

func (t *fakeTxn) lock(n *fakeNode) {
	if t.latched[n] {
		panic("node latched twice")
	}
	t.latched[n] = true
	t.held++
}

func (t *fakeTxn) LockRoot(context.Context) (Node, error) {
	t.lock(t.root)
	return t.root, nil
}

func (t *fakeTxn) ChildrenInRange(_ context.Context, n Node, r KeyRange) ([]Node, error) {
	fn := n.(*fakeNode)
	if !t.latched[fn] {
		panic("children of unlatched node")
	}
	var res []Node
	for _, c := range fn.children {
		if r.AfterStart(bytes.Compare, c.hi) && r.BeforeEnd(bytes.Compare, c.lo) {
			t.lock(c)
			res = append(res, c)
		}
	}
	return res, nil
}

func (t *fakeTxn) Unlock(n Node) {
	fn := n.(*fakeNode)
	if !t.latched[fn] {
		panic("unlock of unlatched node")
	}
	delete(t.latched, fn)
	t.held--
}

func (t *fakeTxn) LeafEntriesInRange(n Node, r KeyRange) []Entry {
	var res []Entry
	for _, e := range n.(*fakeNode).entries {
		if r.Contains(bytes.Compare, e.Key) {
			res = append(res, e)
		}
	}
	return res
}

func (t *fakeTxn) AcquireBlob(RawValue) Blob {
	panic("fake trees hold in-place values only")
}

func (t *fakeTxn) End() error {
	return nil
}

// countingBlob is a Blob that counts releases.
type countingBlob struct {
	value    []byte
	err      error
	fetches  int
	releases int
}

func (b *countingBlob) Value(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.fetches++
	return b.value, b.err
}

func (b *countingBlob) Release() {
	b.releases++
}

func outOfLineProvider(b *countingBlob) *ValueProvider {
	return &ValueProvider{kind: outOfLineValue, blob: b}
}

// collect drains iter, returning the keys and releasing their providers.
func collect(t *testing.T, iter kvIterator) []string {
	t.Helper()
	var keys []string
	for {
		kv, ok, err := iter.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return keys
		}
		keys = append(keys, string(kv.Key))
		kv.Value.Release()
	}
}
