// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rget implements ordered range scans over a keyspace partitioned
// across independent B-tree slices.
//
// A scan opens one read transaction per slice, walks every slice's tree with
// a lock-coupling traversal that yields the slice's keys in the range in
// order, merges the per-slice streams into one globally ordered stream and
// stops at the requested cap. Every node latch and transaction acquired by a
// scan is released before Scan returns, on success and on failure alike. Only
// the value references of the returned keys outlive the call.
//
// # Traversal
//
// Each slice's tree is walked breadth-first while fewer than
// Options.BreadthFirstThreshold nodes are latched, which releases the upper
// levels of the tree quickly; past the threshold the walk continues
// depth-first, resolving the leftmost open subtree before its siblings so that
// the number of latched nodes stays bounded. Latched nodes are kept as a stack
// of per-level queues rather than on the call stack.
//
// # Values
//
// Values are handed out as ValueProviders. A provider over an in-place value
// never touches the blob path; one over an out-of-line value holds a reference
// that is released exactly once by ValueProvider.Release (or by
// RangeResult.Release). Materialization errors surface from
// ValueProvider.Value and do not fail the scan.
package rget
