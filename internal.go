// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import "github.com/cockroachdb/rget/internal/base"

// KeyRange exports the base.KeyRange type.
type KeyRange = base.KeyRange

// RawValue exports the base.RawValue type.
type RawValue = base.RawValue

// MakeInPlaceValue exports the base.MakeInPlaceValue function.
func MakeInPlaceValue(val []byte) RawValue {
	return base.MakeInPlaceValue(val)
}

// MakeLargeValue exports the base.MakeLargeValue function.
func MakeLargeValue(handle []byte) RawValue {
	return base.MakeLargeValue(handle)
}

// Entry exports the base.Entry type.
type Entry = base.Entry

// Store exports the base.Store type.
type Store = base.Store

// Slice exports the base.Slice type.
type Slice = base.Slice

// Transaction exports the base.Transaction type.
type Transaction = base.Transaction

// Node exports the base.Node type.
type Node = base.Node

// Blob exports the base.Blob type.
type Blob = base.Blob

// Compare exports the base.Compare type.
type Compare = base.Compare

// Comparer exports the base.Comparer type.
type Comparer = base.Comparer

// DefaultComparer exports the base.DefaultComparer variable.
var DefaultComparer = base.DefaultComparer

// Logger exports the base.Logger type.
type Logger = base.Logger

// Unbounded returns a range covering every key.
func Unbounded() KeyRange {
	return base.Unbounded()
}

// NoopLogger exports the base.NoopLogger type.
type NoopLogger = base.NoopLogger

// DefaultLogger exports the base.DefaultLogger variable.
var DefaultLogger = base.DefaultLogger

var (
	// ErrInvalidRange is returned by a scan with Options.StrictRanges set
	// whose range excludes every key.
	ErrInvalidRange = base.ErrInvalidRange
	// ErrLockFailure marks errors raised when a slice cannot grant a node
	// latch. It fails the whole scan.
	ErrLockFailure = base.ErrLockFailure
	// ErrValueRetrieval marks errors raised when an out-of-line value cannot
	// be materialized. It is reported by ValueProvider.Value only.
	ErrValueRetrieval = base.ErrValueRetrieval
	// ErrDuplicateKey marks errors raised when two slices produce the same
	// key. It fails the whole scan.
	ErrDuplicateKey = base.ErrDuplicateKey
)
