// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func randStr(fill []byte, rng *rand.Rand) {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	for i := range fill {
		fill[i] = letters[rng.IntN(len(letters))]
	}
}

func TestMergingIterHeap(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Logf("Using seed %d", seed)
	rng := rand.New(rand.NewPCG(0, uint64(seed)))

	generatedKeys := map[string]struct{}{}
	// Generates unique keys.
	makeKey := func() []byte {
		n := 10 + rng.IntN(20)
		key := make([]byte, n)
		for {
			randStr(key, rng)
			if _, ok := generatedKeys[string(key)]; ok {
				continue
			}
			generatedKeys[string(key)] = struct{}{}
			return key
		}
	}
	levels := make([]mergingIterLevel, 2+rng.IntN(15))
	heap := mergingIterHeap{cmp: DefaultComparer.Compare}
	for i := range levels {
		levels[i] = mergingIterLevel{index: i, head: KeyValue{Key: makeKey()}}
		heap.items = append(heap.items, mergingIterHeapItem{mergingIterLevel: &levels[i]})
	}
	checkHeap := func() {
		count := 0
		minIndex := -1
		for i := range levels {
			if levels[i].head.Key == nil {
				continue
			}
			count++
			if minIndex == -1 || heap.cmp(levels[i].head.Key, levels[minIndex].head.Key) < 0 {
				minIndex = i
			}
		}
		require.Equal(t, count, heap.len())
		if count > 0 {
			require.Equal(t, minIndex, heap.items[0].index)
		}
		for _, item := range heap.items {
			require.NotNil(t, item.head.Key)
		}
	}
	heap.init()
	checkHeap()
	for i := 0; i < 50 && heap.len() > 0; i++ {
		if rng.IntN(10) == 0 {
			t.Logf("%d: popping heap index %d", i, heap.items[0].index)
			heap.items[0].head = KeyValue{}
			heap.pop()
		} else {
			heap.items[0].head.Key = makeKey()
			heap.fixTop()
		}
		checkHeap()
	}
}
