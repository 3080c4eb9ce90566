// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blob implements an in-memory store of out-of-line ("large")
// values. Values live in generation-checked slots; readers pin a slot through
// a Ref and release it exactly once. A value deleted while pinned stays
// readable by existing pins and its slot is reclaimed when the last pin is
// released.
package blob

import (
	"context"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/rget/internal/base"
	"github.com/cockroachdb/rget/internal/invariants"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the per-value compression algorithm applied to stored
// values.
type Compression int

const (
	NoCompression Compression = iota
	SnappyCompression
	ZstdCompression
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "NoCompression"
	case SnappyCompression:
		return "Snappy"
	case ZstdCompression:
		return "ZSTD"
	default:
		return "Unknown"
	}
}

// ParseCompression parses the String form of a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "NoCompression", "none":
		return NoCompression, nil
	case "Snappy", "snappy":
		return SnappyCompression, nil
	case "ZSTD", "zstd":
		return ZstdCompression, nil
	}
	return 0, errors.Newf("blob: unknown compression %q", s)
}

type slot struct {
	generation uint32
	compressed []byte
	checksum   uint64
	valueLen   uint32
	pins       int32
	live       bool
	// deleted is set when the value was deleted while pinned; the slot is
	// reclaimed when pins drops to zero.
	deleted bool
}

// Store holds out-of-line values.
type Store struct {
	compression Compression
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder

	mu struct {
		sync.Mutex
		slots []slot
		free  []uint32
		pins  int64
	}
}

// NewStore returns an empty store compressing values with c.
func NewStore(c Compression) *Store {
	s := &Store{compression: c}
	if c == ZstdCompression {
		// NewWriter and NewReader only fail on invalid options.
		var err error
		if s.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
			panic(err)
		}
		if s.decoder, err = zstd.NewReader(nil); err != nil {
			panic(err)
		}
	}
	return s
}

// Close releases the resources held by the compressor.
func (s *Store) Close() {
	if s.encoder != nil {
		_ = s.encoder.Close()
		s.decoder.Close()
	}
}

func (s *Store) compress(value []byte) []byte {
	switch s.compression {
	case SnappyCompression:
		return snappy.Encode(nil, value)
	case ZstdCompression:
		return s.encoder.EncodeAll(value, nil)
	default:
		return slices.Clone(value)
	}
}

func (s *Store) decompress(compressed []byte, valueLen uint32) ([]byte, error) {
	switch s.compression {
	case SnappyCompression:
		return snappy.Decode(make([]byte, valueLen), compressed)
	case ZstdCompression:
		return s.decoder.DecodeAll(compressed, make([]byte, 0, valueLen))
	default:
		return slices.Clone(compressed), nil
	}
}

// Put stores value and returns its handle.
func (s *Store) Put(value []byte) Handle {
	compressed := s.compress(value)
	checksum := xxhash.Sum64(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	var idx uint32
	if n := len(s.mu.free); n > 0 {
		idx = s.mu.free[n-1]
		s.mu.free = s.mu.free[:n-1]
	} else {
		idx = uint32(len(s.mu.slots))
		s.mu.slots = append(s.mu.slots, slot{})
	}
	sl := &s.mu.slots[idx]
	sl.generation++
	sl.compressed = compressed
	sl.checksum = checksum
	sl.valueLen = uint32(len(value))
	sl.live = true
	sl.deleted = false
	return Handle{Slot: idx, Generation: sl.generation, ValueLen: sl.valueLen}
}

// lookupLocked returns the slot h refers to, or nil if the handle is stale.
func (s *Store) lookupLocked(h Handle) *slot {
	if int(h.Slot) >= len(s.mu.slots) {
		return nil
	}
	sl := &s.mu.slots[h.Slot]
	if !sl.live || sl.deleted || sl.generation != h.Generation {
		return nil
	}
	return sl
}

// Delete removes the value h refers to. It returns false if the handle is
// stale. Existing pins keep the value readable.
func (s *Store) Delete(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.lookupLocked(h)
	if sl == nil {
		return false
	}
	if sl.pins > 0 {
		sl.deleted = true
		return true
	}
	s.reclaimLocked(h.Slot)
	return true
}

func (s *Store) reclaimLocked(idx uint32) {
	sl := &s.mu.slots[idx]
	sl.compressed = nil
	sl.live = false
	sl.deleted = false
	s.mu.free = append(s.mu.free, idx)
}

// Acquire pins the value identified by the encoded handle. Acquire never
// fails: a stale or malformed handle yields a Ref whose Value returns an error
// marked base.ErrValueRetrieval. Every Ref must be released exactly once.
func (s *Store) Acquire(encoded []byte) *Ref {
	h, err := DecodeHandle(encoded)
	if err != nil {
		return &Ref{err: errors.Mark(err, base.ErrValueRetrieval)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.lookupLocked(h)
	if sl == nil {
		return &Ref{handle: h, err: base.ValueRetrievalf("blob: value %s not found", h)}
	}
	sl.pins++
	s.mu.pins++
	return &Ref{store: s, handle: h}
}

func (s *Store) unpin(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.mu.slots[h.Slot]
	sl.pins = invariants.SafeSub(sl.pins, 1)
	s.mu.pins = invariants.SafeSub(s.mu.pins, 1)
	if sl.pins == 0 && sl.deleted {
		s.reclaimLocked(h.Slot)
	}
}

func (s *Store) read(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Mark(err, base.ErrValueRetrieval)
	}
	s.mu.Lock()
	sl := &s.mu.slots[h.Slot]
	compressed, checksum, valueLen := sl.compressed, sl.checksum, sl.valueLen
	s.mu.Unlock()

	value, err := s.decompress(compressed, valueLen)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "blob: decompressing %s", h), base.ErrValueRetrieval)
	}
	if len(value) != int(valueLen) || xxhash.Sum64(value) != checksum {
		return nil, base.ValueRetrievalf("blob: checksum mismatch for %s", h)
	}
	return value, nil
}

// Pins returns the number of pins currently held on the store's values.
func (s *Store) Pins() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.pins
}

// Len returns the number of live values, including deleted values that are
// still pinned.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mu.slots) - len(s.mu.free)
}

// Ref is a pinned reference to a stored value.
type Ref struct {
	store      *Store
	handle     Handle
	err        error
	released   bool
	closeCheck invariants.CloseChecker
}

// Handle returns the handle the reference was acquired for.
func (r *Ref) Handle() Handle {
	return r.handle
}

// Value reads, decompresses and verifies the value. Each call reads the
// value anew; callers cache the result.
func (r *Ref) Value(ctx context.Context) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.released {
		return nil, errors.AssertionFailedf("blob: value %s read after release", r.handle)
	}
	return r.store.read(ctx, r.handle)
}

// Release unpins the value. Calls after the first are no-ops, except in
// invariant builds where they panic.
func (r *Ref) Release() {
	r.closeCheck.Close()
	if r.released {
		return
	}
	r.released = true
	if r.store != nil {
		r.store.unpin(r.handle)
	}
}
