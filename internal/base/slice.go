// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "context"

// Store exposes the fixed set of slices a keyspace is partitioned across.
// Slice assignment is orthogonal to key order, so every slice may hold keys
// anywhere in the keyspace.
type Store interface {
	Slices() []Slice
}

// Slice is one independently latched B-tree.
type Slice interface {
	// BeginRead opens a read transaction on the slice. The transaction must
	// be ended exactly once.
	BeginRead(ctx context.Context) (Transaction, error)
}

// Node is an opaque handle on a latched B-tree node, handed out by a
// transaction. Only the transaction that produced a Node may unlatch it.
type Node interface {
	// Leaf returns true if the node holds entries rather than children.
	Leaf() bool
}

// Transaction is a read transaction bound to one slice. It grants access to
// the slice's nodes; it owns no keys or values.
//
// Latching methods may block until the latch is granted. They return an error
// marked ErrLockFailure if the latch cannot be granted, in which case no new
// latch is held.
type Transaction interface {
	// LockRoot latches the root node.
	LockRoot(ctx context.Context) (Node, error)
	// ChildrenInRange latches and returns, in key order, the children of the
	// latched internal node n whose key spans intersect r. n stays latched.
	ChildrenInRange(ctx context.Context, n Node, r KeyRange) ([]Node, error)
	// Unlock releases the latch on n.
	Unlock(n Node)
	// LeafEntriesInRange returns, in key order, the entries of the latched leaf
	// n that lie within r. The entries remain valid after n is unlatched.
	LeafEntriesInRange(n Node, r KeyRange) []Entry
	// AcquireBlob takes a reference on the out-of-line value v refers to.
	// REQUIRES: v.IsLarge().
	AcquireBlob(v RawValue) Blob
	// End ends the transaction.
	End() error
}

// Blob is a reference to an out-of-line value. It must be released exactly
// once. A Blob whose value cannot be located still releases without error.
type Blob interface {
	// Value materializes the value, returning an error marked
	// ErrValueRetrieval if it cannot be located or is corrupt.
	Value(ctx context.Context) ([]byte, error)
	Release()
}
