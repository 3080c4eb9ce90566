// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestValueProviderInPlace(t *testing.T) {
	p := MakeInPlaceValueProvider([]byte("hello"))
	require.True(t, p.IsInPlace())
	v, err := p.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	// In-place values are readable after release, and release is idempotent.
	p.Release()
	p.Release()
	v, err = p.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	// A nil provider releases without effect.
	var nilProvider *ValueProvider
	nilProvider.Release()
}

func TestValueProviderOutOfLine(t *testing.T) {
	b := &countingBlob{value: []byte("large")}
	p := outOfLineProvider(b)
	require.False(t, p.IsInPlace())

	// The first fetch is cached.
	for i := 0; i < 3; i++ {
		v, err := p.Value(context.Background())
		require.NoError(t, err)
		require.Equal(t, []byte("large"), v)
	}
	require.Equal(t, 1, b.fetches)

	p.Release()
	p.Release()
	require.Equal(t, 1, b.releases)

	// The cached value survives release.
	v, err := p.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("large"), v)
}

func TestValueProviderRetrievalError(t *testing.T) {
	b := &countingBlob{err: errors.Mark(errors.New("gone"), ErrValueRetrieval)}
	p := outOfLineProvider(b)
	defer p.Release()
	for i := 0; i < 2; i++ {
		_, err := p.Value(context.Background())
		require.True(t, errors.Is(err, ErrValueRetrieval))
	}
	require.Equal(t, 1, b.fetches)
}

func TestValueProviderCanceled(t *testing.T) {
	b := &countingBlob{value: []byte("large")}
	p := outOfLineProvider(b)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Value(ctx)
	require.True(t, errors.Is(err, context.Canceled))

	// A cancellation error is not cached.
	v, err := p.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("large"), v)
}

func TestValueProviderReadAfterRelease(t *testing.T) {
	b := &countingBlob{value: []byte("large")}
	p := outOfLineProvider(b)
	p.Release()
	_, err := p.Value(context.Background())
	require.True(t, errors.IsAssertionFailure(err))
	require.Equal(t, 0, b.fetches)
}

func TestValueProviderFromTransaction(t *testing.T) {
	s := newTestStore(4, 0, nil)
	defer s.close()
	txn, err := s.slices[0].BeginRead(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, txn.End()) }()

	// In-place values never take a blob reference.
	p := newValueProvider(MakeInPlaceValue([]byte("small")), txn)
	require.True(t, p.IsInPlace())
	require.EqualValues(t, 0, s.blobs.Pins())
	p.Release()

	h := s.blobs.Put([]byte("large value"))
	p = newValueProvider(MakeLargeValue(h.Encode(nil)), txn)
	require.False(t, p.IsInPlace())
	require.EqualValues(t, 1, s.blobs.Pins())

	// The value remains retrievable after the transaction ends and after it is
	// deleted from the store, until the provider is released.
	require.True(t, s.blobs.Delete(h))
	v, err := p.Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("large value"), v)
	p.Release()
	require.EqualValues(t, 0, s.blobs.Pins())
	require.Equal(t, 0, s.blobs.Len())
}
