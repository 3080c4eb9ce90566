// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memstore

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/rget/internal/base"
	"github.com/cockroachdb/rget/internal/btree"
)

// BeginRead implements base.Slice.
func (s *Slice) BeginRead(ctx context.Context) (base.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "memstore: beginning read on slice %d", redact.Safe(s.index))
	}
	t := &txn{slice: s}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.txns[t] = struct{}{}
	s.mu.begun++
	return t, nil
}

// txn is a read transaction on one slice. It is not safe for concurrent use,
// except that the slice may invalidate it at any time.
type txn struct {
	slice       *Slice
	invalidated atomic.Bool
	ended       bool
	// held is the number of latches acquired through the transaction and not
	// yet released.
	held int
}

var _ base.Transaction = (*txn)(nil)

// checkLatch returns an error marked base.ErrLockFailure if a new latch must
// be refused.
func (t *txn) checkLatch(ctx context.Context) error {
	switch {
	case t.ended:
		return base.LockFailuref("memstore: slice %d: transaction ended", redact.Safe(t.slice.index))
	case t.invalidated.Load():
		return base.LockFailuref("memstore: slice %d: transaction invalidated", redact.Safe(t.slice.index))
	}
	if err := ctx.Err(); err != nil {
		return base.MarkLockFailure(errors.Wrapf(err, "memstore: slice %d", redact.Safe(t.slice.index)))
	}
	return nil
}

func (t *txn) node(n base.Node) *btree.Node {
	bn, ok := n.(*btree.Node)
	if !ok {
		panic(errors.AssertionFailedf("memstore: foreign node %T", n))
	}
	return bn
}

// LockRoot implements base.Transaction.
func (t *txn) LockRoot(ctx context.Context) (base.Node, error) {
	if err := t.checkLatch(ctx); err != nil {
		return nil, err
	}
	t.held++
	return t.slice.tree.LatchRoot(), nil
}

// ChildrenInRange implements base.Transaction.
func (t *txn) ChildrenInRange(
	ctx context.Context, n base.Node, r base.KeyRange,
) ([]base.Node, error) {
	if err := t.checkLatch(ctx); err != nil {
		return nil, err
	}
	children := t.slice.tree.LatchChildrenInRange(t.node(n), r)
	if len(children) == 0 {
		return nil, nil
	}
	t.held += len(children)
	res := make([]base.Node, len(children))
	for i, c := range children {
		res[i] = c
	}
	return res, nil
}

// Unlock implements base.Transaction.
func (t *txn) Unlock(n base.Node) {
	t.held--
	t.slice.tree.Unlatch(t.node(n))
}

// LeafEntriesInRange implements base.Transaction.
func (t *txn) LeafEntriesInRange(n base.Node, r base.KeyRange) []base.Entry {
	return t.node(n).LeafEntriesInRange(t.slice.tree.Compare(), r)
}

// AcquireBlob implements base.Transaction.
func (t *txn) AcquireBlob(v base.RawValue) base.Blob {
	return t.slice.blobs.Acquire(v.ValueOrHandle)
}

// End implements base.Transaction. The transaction's latches must all have
// been released.
func (t *txn) End() error {
	if t.ended {
		return errors.AssertionFailedf("memstore: slice %d: transaction ended twice", redact.Safe(t.slice.index))
	}
	t.ended = true
	t.slice.mu.Lock()
	delete(t.slice.mu.txns, t)
	t.slice.mu.Unlock()
	if t.held != 0 {
		return errors.AssertionFailedf("memstore: slice %d: transaction ended with %d latches held",
			redact.Safe(t.slice.index), redact.Safe(t.held))
	}
	return nil
}
