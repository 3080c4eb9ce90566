// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package memstore implements an in-memory keyspace partitioned across a
// fixed number of slices, each an independently latched B-tree. Keys are
// assigned to slices by hash, so every slice spans the whole keyspace. Values
// longer than a threshold are stored out-of-line in a shared blob store.
//
// A Store serves as the collaborator of rget.Scan.
package memstore

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/rget/internal/base"
	"github.com/cockroachdb/rget/internal/blob"
	"github.com/cockroachdb/rget/internal/btree"
)

// DefaultSlices is the default value of Options.Slices.
const DefaultSlices = 4

// Options configures a Store.
type Options struct {
	// Comparer defines the key order. The default is base.DefaultComparer.
	Comparer *base.Comparer
	// Slices is the number of slices. The default is DefaultSlices.
	Slices int
	// NodeCapacity is the maximum fan-out of a tree node. The default is
	// btree.DefaultCapacity.
	NodeCapacity int
	// LargeValueThreshold is the length above which a value is stored
	// out-of-line. Zero stores every value in-place.
	LargeValueThreshold int
	// Compression is applied to out-of-line values.
	Compression blob.Compression
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	o.Comparer = o.Comparer.EnsureDefaults()
	if o.Slices <= 0 {
		o.Slices = DefaultSlices
	}
	if o.NodeCapacity <= 0 {
		o.NodeCapacity = btree.DefaultCapacity
	}
	return o
}

// Store is an in-memory multi-slice keyspace. Set and Delete may be called
// concurrently with each other and with readers.
type Store struct {
	opts   Options
	blobs  *blob.Store
	slices []*Slice
}

var _ base.Store = (*Store)(nil)

// New returns an empty store.
func New(opts *Options) *Store {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.EnsureDefaults()
	s := &Store{
		opts:   o,
		blobs:  blob.NewStore(o.Compression),
		slices: make([]*Slice, o.Slices),
	}
	for i := range s.slices {
		sl := &Slice{
			index: i,
			tree:  btree.New(o.Comparer.Compare, o.NodeCapacity),
			blobs: s.blobs,
		}
		sl.mu.txns = make(map[*txn]struct{})
		s.slices[i] = sl
	}
	return s
}

// Close releases the store's compressor resources. REQUIRES: no transaction
// or blob reference is in use.
func (s *Store) Close() {
	s.blobs.Close()
}

// Slices implements base.Store.
func (s *Store) Slices() []base.Slice {
	res := make([]base.Slice, len(s.slices))
	for i, sl := range s.slices {
		res[i] = sl
	}
	return res
}

// Slice returns the i'th slice.
func (s *Store) Slice(i int) *Slice {
	return s.slices[i]
}

// SliceOf returns the index of the slice key is assigned to.
func (s *Store) SliceOf(key []byte) int {
	return int(xxhash.Sum64(key) % uint64(len(s.slices)))
}

// Blobs returns the store holding out-of-line values.
func (s *Store) Blobs() *blob.Store {
	return s.blobs
}

// Set sets the value of key, replacing any existing value. Both key and value
// are copied.
func (s *Store) Set(key, value []byte) {
	var raw base.RawValue
	if s.opts.LargeValueThreshold > 0 && len(value) > s.opts.LargeValueThreshold {
		h := s.blobs.Put(value)
		raw = base.MakeLargeValue(h.Encode(nil))
	} else {
		raw = base.MakeInPlaceValue(slices.Clone(value))
	}
	if old, ok := s.slices[s.SliceOf(key)].tree.Set(key, raw); ok {
		s.freeValue(old)
	}
}

// Delete removes key, returning true if it was present.
func (s *Store) Delete(key []byte) bool {
	old, ok := s.slices[s.SliceOf(key)].tree.Delete(key)
	if ok {
		s.freeValue(old)
	}
	return ok
}

// freeValue deletes the out-of-line storage of a value that is no longer in
// any tree. Readers that pinned it keep it readable.
func (s *Store) freeValue(v base.RawValue) {
	if !v.IsLarge() {
		return
	}
	if h, err := blob.DecodeHandle(v.ValueOrHandle); err == nil {
		s.blobs.Delete(h)
	}
}

// Len returns the number of keys across all slices.
func (s *Store) Len() int {
	var n int
	for _, sl := range s.slices {
		n += sl.tree.Len()
	}
	return n
}

// Invalidate invalidates every open transaction of every slice. See
// Slice.Invalidate.
func (s *Store) Invalidate() {
	for _, sl := range s.slices {
		sl.Invalidate()
	}
}

// OpenTransactions returns the number of transactions begun and not yet
// ended across all slices.
func (s *Store) OpenTransactions() int {
	var n int
	for _, sl := range s.slices {
		n += sl.OpenTransactions()
	}
	return n
}

// Slice is one B-tree of a Store.
type Slice struct {
	index int
	tree  *btree.BTree
	blobs *blob.Store

	mu struct {
		sync.Mutex
		txns  map[*txn]struct{}
		begun int64
	}
}

var _ base.Slice = (*Slice)(nil)

// Tree returns the slice's tree.
func (s *Slice) Tree() *btree.BTree {
	return s.tree
}

// Invalidate invalidates the slice's open transactions: every latch they
// request from then on is refused with an error marked base.ErrLockFailure.
// Latches already held are unaffected and must still be released.
func (s *Slice) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.mu.txns {
		t.invalidated.Store(true)
	}
}

// OpenTransactions returns the number of transactions begun and not yet
// ended.
func (s *Slice) OpenTransactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mu.txns)
}

// TransactionsBegun returns the number of transactions begun over the slice's
// lifetime.
func (s *Slice) TransactionsBegun() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.begun
}
