// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// fakeIter is a kvIterator over a fixed sequence. Each KeyValue carries a
// countingBlob so tests can check who releases it.
type fakeIter struct {
	kvs    []KeyValue
	blobs  []*countingBlob
	pos    int
	pulls  int
	closes int
	// errAt, if non-negative, makes the pull at that position fail with err.
	errAt int
	err   error
}

func newFakeIter(keys ...string) *fakeIter {
	it := &fakeIter{errAt: -1}
	for _, k := range keys {
		b := &countingBlob{value: []byte("v" + k)}
		it.blobs = append(it.blobs, b)
		it.kvs = append(it.kvs, KeyValue{Key: []byte(k), Value: outOfLineProvider(b)})
	}
	return it
}

func (it *fakeIter) Next(context.Context) (KeyValue, bool, error) {
	it.pulls++
	if it.pos == it.errAt {
		return KeyValue{}, false, it.err
	}
	if it.pos == len(it.kvs) {
		return KeyValue{}, false, nil
	}
	kv := it.kvs[it.pos]
	it.pos++
	return kv, true, nil
}

func (it *fakeIter) Close() error {
	it.closes++
	for _, kv := range it.kvs[it.pos:] {
		kv.Value.Release()
	}
	it.kvs = it.kvs[:it.pos]
	return nil
}

// requireReleasedOnce checks that every provider the iterator produced was
// released exactly once.
func (it *fakeIter) requireReleasedOnce(t *testing.T) {
	t.Helper()
	for i, b := range it.blobs {
		require.Equal(t, 1, b.releases, "blob %d", i)
	}
}

func TestMergingIter(t *testing.T) {
	testCases := []struct {
		inputs   [][]string
		expected string
	}{
		{[][]string{{"1", "3", "5"}, {"2", "4", "6"}}, "1 2 3 4 5 6"},
		{[][]string{{"a", "b", "c"}, {}, {"d"}}, "a b c d"},
		{[][]string{{}, {}}, ""},
		{[][]string{{"b", "x"}}, "b x"},
		{[][]string{{"c"}, {"b"}, {"a"}, {"e"}, {"d"}}, "a b c d e"},
		{[][]string{{"a", "y", "z"}, {"b", "c", "d"}, {"e"}}, "a b c d e y z"},
	}
	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			var fakes []*fakeIter
			var iters []kvIterator
			for _, keys := range tc.inputs {
				f := newFakeIter(keys...)
				fakes = append(fakes, f)
				iters = append(iters, f)
			}
			m := newMergingIter(bytes.Compare, iters...)
			got := collect(t, m)
			require.Equal(t, tc.expected, strings.Join(got, " "))

			// Exhausted stays exhausted.
			_, ok, err := m.Next(context.Background())
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, m.Close())
			require.NoError(t, m.Close())
			for _, f := range fakes {
				require.Equal(t, 1, f.closes)
				f.requireReleasedOnce(t)
			}
		})
	}
}

func TestMergingIterRandom(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewPCG(seed, seed))

	for iter := 0; iter < 20; iter++ {
		n := 1 + rng.IntN(8)
		perm := rng.Perm(500)
		inputs := make([][]string, n)
		for _, k := range perm[:rng.IntN(500)] {
			i := rng.IntN(n)
			inputs[i] = append(inputs[i], fmt.Sprintf("%04d", k))
		}
		var all []string
		iters := make([]kvIterator, n)
		for i := range inputs {
			slices.Sort(inputs[i])
			all = append(all, inputs[i]...)
			iters[i] = newFakeIter(inputs[i]...)
		}
		slices.Sort(all)

		m := newMergingIter(bytes.Compare, iters...)
		got := collect(t, m)
		require.NoError(t, m.Close())
		if len(all) == 0 {
			require.Empty(t, got)
		} else {
			require.Equal(t, all, got)
		}
	}
}

func TestMergingIterLazy(t *testing.T) {
	a := newFakeIter("1", "3", "5", "7")
	b := newFakeIter("2", "4", "6", "8")
	c := newFakeIter("9")
	m := newMergingIter(bytes.Compare, a, b, c)
	ctx := context.Background()

	// The first Next pulls one head from every input.
	kv, ok, err := m.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(kv.Key))
	require.Equal(t, []int{1, 1, 1}, []int{a.pulls, b.pulls, c.pulls})
	kv.Value.Release()

	// Every later Next advances only the input that produced the previous
	// KeyValue.
	kv, _, err = m.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "2", string(kv.Key))
	require.Equal(t, []int{2, 1, 1}, []int{a.pulls, b.pulls, c.pulls})
	kv.Value.Release()

	kv, _, err = m.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "3", string(kv.Key))
	require.Equal(t, []int{2, 2, 1}, []int{a.pulls, b.pulls, c.pulls})
	kv.Value.Release()

	// Closing releases the buffered heads ("4" and "9") and the inputs'
	// unpulled entries.
	require.NoError(t, m.Close())
	for _, f := range []*fakeIter{a, b, c} {
		require.Equal(t, 1, f.closes)
		f.requireReleasedOnce(t)
	}
}

func TestMergingIterDuplicateKey(t *testing.T) {
	a := newFakeIter("1", "3", "5")
	b := newFakeIter("2", "3", "6")
	m := newMergingIter(bytes.Compare, a, b)
	ctx := context.Background()

	var got []string
	var err error
	for {
		var kv KeyValue
		var ok bool
		kv, ok, err = m.Next(ctx)
		if err != nil || !ok {
			break
		}
		got = append(got, string(kv.Key))
		kv.Value.Release()
	}
	require.True(t, errors.Is(err, ErrDuplicateKey), "%+v", err)
	require.Equal(t, []string{"1", "2", "3"}, got)
	require.Contains(t, err.Error(), `key "3" produced by slices`)

	// The error is sticky.
	_, _, err2 := m.Next(ctx)
	require.Equal(t, err, err2)

	require.NoError(t, m.Close())
	a.requireReleasedOnce(t)
	b.requireReleasedOnce(t)
}

func TestMergingIterOutOfOrderInput(t *testing.T) {
	a := newFakeIter("1", "4", "2")
	m := newMergingIter(bytes.Compare, a, newFakeIter("3"))
	ctx := context.Background()
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		var kv KeyValue
		kv, _, err = m.Next(ctx)
		kv.Value.Release()
	}
	require.True(t, errors.IsAssertionFailure(err), "%+v", err)
	require.NoError(t, m.Close())
	a.requireReleasedOnce(t)
}

func TestMergingIterInputError(t *testing.T) {
	for _, errAt := range []int{0, 2} {
		t.Run(fmt.Sprintf("errAt=%d", errAt), func(t *testing.T) {
			a := newFakeIter("1", "3", "5")
			b := newFakeIter("2", "4", "6")
			b.errAt = errAt
			b.err = errors.Mark(errors.New("boom"), ErrLockFailure)
			m := newMergingIter(bytes.Compare, a, b)

			var n int
			var err error
			for {
				var kv KeyValue
				var ok bool
				kv, ok, err = m.Next(context.Background())
				if err != nil || !ok {
					break
				}
				n++
				kv.Value.Release()
			}
			require.True(t, errors.Is(err, ErrLockFailure))
			require.Less(t, n, 6)
			require.NoError(t, m.Close())
			a.requireReleasedOnce(t)
			b.requireReleasedOnce(t)
		})
	}
}

func TestMergingIterNextAfterClose(t *testing.T) {
	m := newMergingIter(bytes.Compare, newFakeIter("a"))
	require.NoError(t, m.Close())
	_, _, err := m.Next(context.Background())
	require.True(t, errors.IsAssertionFailure(err))
}
