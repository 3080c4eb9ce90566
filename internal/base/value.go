// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

// A RawValue is a value as stored in a leaf. The value is either in-place,
// immediately accessible, or it is stored out-of-line and ValueOrHandle holds
// an encoded handle that must be resolved through the transaction that read
// the leaf.
type RawValue struct {
	ValueOrHandle []byte
	// Large is set when ValueOrHandle is an out-of-line handle.
	Large bool
}

// MakeInPlaceValue constructs an in-place value.
func MakeInPlaceValue(val []byte) RawValue {
	return RawValue{ValueOrHandle: val}
}

// MakeLargeValue constructs a value referring to an out-of-line blob.
func MakeLargeValue(handle []byte) RawValue {
	return RawValue{ValueOrHandle: handle, Large: true}
}

// IsLarge returns true iff the value is a handle to an out-of-line blob.
func (v RawValue) IsLarge() bool {
	return v.Large
}

// Entry is a key and its raw value, as captured from a latched leaf.
type Entry struct {
	Key   []byte
	Value RawValue
}
