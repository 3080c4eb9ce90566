// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the fundamental types shared by the range scan engine
// and the slice implementations it reads from: key ranges, raw values and
// leaf entries, comparers, loggers and the error categories surfaced by a
// scan.
//
// # Latch protocol
//
// Slices expose their B-tree through a read transaction. A node handed out by
// a transaction is latched (shared) and stays latched until the holder hands
// it back through Unlock. Children are latched before their parent is
// unlatched, so that a reader never observes a node that a concurrent writer
// is restructuring.
//
// # Values
//
// A RawValue either carries its value in place or an encoded handle pointing
// at an out-of-line blob. Handles are resolved through the transaction that
// produced the entry; see rget.ValueProvider.
package base
