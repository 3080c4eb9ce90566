// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// MaxHandleLength is the maximum length of an encoded handle.
//
// Handle fields are varint encoded, so maximum 5 bytes each.
const MaxHandleLength = 3 * binary.MaxVarintLen32

// Handle describes the location of a value within a Store. A slot is reused
// once its value has been deleted and unpinned; the generation distinguishes
// the slot's successive occupants so that a stale handle never resolves to a
// newer value.
type Handle struct {
	Slot       uint32
	Generation uint32
	ValueLen   uint32
}

// String implements the fmt.Stringer interface.
func (h Handle) String() string {
	return redact.StringWithoutMarkers(h)
}

// SafeFormat implements redact.SafeFormatter.
func (h Handle) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(slot%d,gen%d,len%d)", h.Slot, h.Generation, h.ValueLen)
}

// Encode appends the encoded handle to dst.
func (h Handle) Encode(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(h.Slot))
	dst = binary.AppendUvarint(dst, uint64(h.Generation))
	return binary.AppendUvarint(dst, uint64(h.ValueLen))
}

// DecodeHandle decodes a handle produced by Handle.Encode.
func DecodeHandle(src []byte) (Handle, error) {
	var fields [3]uint32
	for i := range fields {
		v, n := binary.Uvarint(src)
		if n <= 0 || v > 1<<32-1 {
			return Handle{}, errors.Newf("blob: malformed handle %x", src)
		}
		fields[i] = uint32(v)
		src = src[n:]
	}
	if len(src) != 0 {
		return Handle{}, errors.Newf("blob: %d trailing bytes after handle", len(src))
	}
	return Handle{Slot: fields[0], Generation: fields[1], ValueLen: fields[2]}, nil
}
