// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

type mergingIterLevel struct {
	index int
	iter  kvIterator
	// head is the level's most recently pulled, not yet returned KeyValue. It
	// is owned by the mergingIter until returned.
	head KeyValue
}

// mergingIter provides a merged view of the per-slice iterators of a scan.
// Walking the merged iterator returns all KeyValues of all input iterators in
// strictly increasing key order.
//
// The inputs' key ranges may overlap, but no key may be produced by two
// inputs; if one is, Next returns an error marked ErrDuplicateKey.
//
// Inputs are pulled on demand: every input has at most one head buffered, and
// after a KeyValue is returned only the input that produced it is advanced,
// at the start of the following Next.
type mergingIter struct {
	cmp    Compare
	levels []mergingIterLevel
	heap   mergingIterHeap

	initialized bool
	// last is the level that produced the most recently returned KeyValue, and
	// lastKey its key. last must be advanced before the heap is consulted.
	last      *mergingIterLevel
	hasLast   bool
	lastKey   []byte
	lastIndex int

	err    error
	closed bool
}

var _ kvIterator = (*mergingIter)(nil)

// newMergingIter returns an iterator that merges its inputs. None of the
// iters may be nil. The mergingIter takes ownership of the inputs and closes
// them when it is closed.
func newMergingIter(cmp Compare, iters ...kvIterator) *mergingIter {
	m := &mergingIter{cmp: cmp}
	m.heap.cmp = cmp
	m.levels = make([]mergingIterLevel, len(iters))
	for i := range iters {
		m.levels[i] = mergingIterLevel{index: i, iter: iters[i]}
	}
	return m
}

func (m *mergingIter) initHeap(ctx context.Context) error {
	m.heap.items = make([]mergingIterHeapItem, 0, len(m.levels))
	for i := range m.levels {
		l := &m.levels[i]
		kv, ok, err := l.iter.Next(ctx)
		if err != nil {
			return err
		}
		if ok {
			l.head = kv
			m.heap.items = append(m.heap.items, mergingIterHeapItem{mergingIterLevel: l})
		}
	}
	m.heap.init()
	return nil
}

// advanceLast pulls the next KeyValue of the level that produced the last
// returned one and restores the heap.
func (m *mergingIter) advanceLast(ctx context.Context) error {
	l := m.last
	m.last = nil
	kv, ok, err := l.iter.Next(ctx)
	if err != nil {
		return err
	}
	if !ok {
		m.heap.pop()
		return nil
	}
	if m.cmp(kv.Key, m.lastKey) <= 0 {
		kv.Value.Release()
		return errors.AssertionFailedf("rget: slice %d produced %q after %q",
			redact.Safe(l.index), kv.Key, m.lastKey)
	}
	l.head = kv
	m.heap.fixTop()
	return nil
}

// Next implements kvIterator.
func (m *mergingIter) Next(ctx context.Context) (KeyValue, bool, error) {
	if m.err != nil {
		return KeyValue{}, false, m.err
	}
	if m.closed {
		return KeyValue{}, false, errors.AssertionFailedf("rget: merging iterator used after close")
	}
	if !m.initialized {
		m.initialized = true
		if err := m.initHeap(ctx); err != nil {
			m.err = err
			return KeyValue{}, false, err
		}
	} else if m.last != nil {
		if err := m.advanceLast(ctx); err != nil {
			m.err = err
			return KeyValue{}, false, err
		}
	}
	if m.heap.len() == 0 {
		return KeyValue{}, false, nil
	}

	top := m.heap.items[0].mergingIterLevel
	if m.hasLast && m.cmp(top.head.Key, m.lastKey) == 0 {
		m.err = errors.Mark(errors.Newf("rget: key %q produced by slices %d and %d",
			m.lastKey, redact.Safe(m.lastIndex), redact.Safe(top.index)), ErrDuplicateKey)
		return KeyValue{}, false, m.err
	}
	kv := top.head
	top.head = KeyValue{}
	m.last = top
	m.hasLast = true
	m.lastKey = kv.Key
	m.lastIndex = top.index
	return kv, true, nil
}

// Close implements kvIterator. It releases every buffered head and closes
// every input, including inputs that were never exhausted.
func (m *mergingIter) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var err error
	for i := range m.levels {
		l := &m.levels[i]
		l.head.Value.Release()
		l.head = KeyValue{}
		err = errors.CombineErrors(err, l.iter.Close())
	}
	m.heap.items = nil
	m.last = nil
	return err
}
