// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/redact"

// KeyRange is an interval of keys. A nil Start (End) leaves the range
// unbounded below (above); an empty non-nil slice is a bound at the empty key.
// LeftOpen excludes Start and RightOpen excludes End.
type KeyRange struct {
	Start     []byte
	End       []byte
	LeftOpen  bool
	RightOpen bool
}

// Unbounded returns a range covering every key.
func Unbounded() KeyRange {
	return KeyRange{}
}

// AfterStart returns true if k is not excluded by the lower bound.
func (r KeyRange) AfterStart(cmp Compare, k []byte) bool {
	if r.Start == nil {
		return true
	}
	c := cmp(k, r.Start)
	if r.LeftOpen {
		return c > 0
	}
	return c >= 0
}

// BeforeEnd returns true if k is not excluded by the upper bound.
func (r KeyRange) BeforeEnd(cmp Compare, k []byte) bool {
	if r.End == nil {
		return true
	}
	c := cmp(k, r.End)
	if r.RightOpen {
		return c < 0
	}
	return c <= 0
}

// Contains returns true if k lies within the range.
func (r KeyRange) Contains(cmp Compare, k []byte) bool {
	return r.AfterStart(cmp, k) && r.BeforeEnd(cmp, k)
}

// Empty returns true if the bounds exclude every key: Start > End, or
// Start == End with either side open.
func (r KeyRange) Empty(cmp Compare) bool {
	if r.Start == nil || r.End == nil {
		return false
	}
	switch c := cmp(r.Start, r.End); {
	case c > 0:
		return true
	case c == 0:
		return r.LeftOpen || r.RightOpen
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (r KeyRange) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter. Keys are redactable; the
// brackets and infinities are not.
func (r KeyRange) SafeFormat(w redact.SafePrinter, _ rune) {
	if r.LeftOpen || r.Start == nil {
		w.SafeRune('(')
	} else {
		w.SafeRune('[')
	}
	if r.Start == nil {
		w.SafeString("-inf")
	} else {
		w.Print(FormatBytes(r.Start))
	}
	w.SafeString(", ")
	if r.End == nil {
		w.SafeString("+inf")
	} else {
		w.Print(FormatBytes(r.End))
	}
	if r.RightOpen || r.End == nil {
		w.SafeRune(')')
	} else {
		w.SafeRune(']')
	}
}
