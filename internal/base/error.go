// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrInvalidRange is returned by a strict scan whose range is empty once the
// openness of its bounds is applied (for example start > end).
var ErrInvalidRange = errors.New("rget: invalid range")

// ErrLockFailure marks an error raised when a node latch cannot be granted:
// the transaction was ended or invalidated, the slice is unavailable, or the
// context was cancelled while waiting.
var ErrLockFailure = errors.New("rget: lock failure")

// ErrValueRetrieval marks an error raised when an out-of-line value cannot be
// materialized.
var ErrValueRetrieval = errors.New("rget: value retrieval failed")

// ErrDuplicateKey marks an error raised when the same key is produced by two
// slices.
var ErrDuplicateKey = errors.New("rget: duplicate key across slices")

// MarkLockFailure wraps err so that errors.Is(err, ErrLockFailure) holds.
func MarkLockFailure(err error) error {
	return errors.Mark(err, ErrLockFailure)
}

// LockFailuref returns a new error marked as ErrLockFailure.
func LockFailuref(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrLockFailure)
}

// ValueRetrievalf returns a new error marked as ErrValueRetrieval.
func ValueRetrievalf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValueRetrieval)
}
