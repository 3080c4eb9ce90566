// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"context"

	"github.com/cockroachdb/errors"
)

type valueKind uint8

const (
	inPlaceValue valueKind = iota
	outOfLineValue
)

// A ValueProvider gives access to the value of one scanned key. The value is
// either in-place, immediately accessible, or stored out-of-line, in which
// case the provider holds a reference on the blob until it is released.
//
// A ValueProvider is not safe for concurrent use.
type ValueProvider struct {
	kind valueKind
	// inPlace is set iff kind == inPlaceValue.
	inPlace []byte
	// blob is set iff kind == outOfLineValue and the provider has not been
	// released.
	blob Blob

	fetched  bool
	value    []byte
	err      error
	released bool
}

// newValueProvider returns a provider for raw, taking a blob reference
// through txn if the value is stored out-of-line. In-place values never reach
// the blob path.
func newValueProvider(raw RawValue, txn Transaction) *ValueProvider {
	if raw.IsLarge() {
		return &ValueProvider{kind: outOfLineValue, blob: txn.AcquireBlob(raw)}
	}
	return &ValueProvider{kind: inPlaceValue, inPlace: raw.ValueOrHandle}
}

// MakeInPlaceValueProvider returns a provider over an in-place value.
func MakeInPlaceValueProvider(value []byte) *ValueProvider {
	return &ValueProvider{kind: inPlaceValue, inPlace: value}
}

// IsInPlace returns true iff the value was stored in-place and does not need
// to be fetched.
func (p *ValueProvider) IsInPlace() bool {
	return p.kind == inPlaceValue
}

// Value returns the value. The first fetch of an out-of-line value is cached
// and returned by later calls, including a retrieval error; an error caused by
// ctx is not cached. An out-of-line value that cannot be located yields an
// error marked ErrValueRetrieval.
func (p *ValueProvider) Value(ctx context.Context) ([]byte, error) {
	switch p.kind {
	case inPlaceValue:
		return p.inPlace, nil
	case outOfLineValue:
		if p.fetched {
			return p.value, p.err
		}
		if p.released {
			return nil, errors.AssertionFailedf("rget: value read after release")
		}
		v, err := p.blob.Value(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		p.value, p.err, p.fetched = v, err, true
		return v, err
	default:
		panic(errors.AssertionFailedf("rget: unknown value kind %d", p.kind))
	}
}

// Release releases the provider's blob reference, if any. Release is
// idempotent: the reference is released on the first call only.
func (p *ValueProvider) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	if p.kind == outOfLineValue {
		p.blob.Release()
		p.blob = nil
	}
}
