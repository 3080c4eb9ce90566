// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import "github.com/cockroachdb/rget/internal/invariants"

// mergingIterHeap is a min-heap of mergingIterLevels ordered by the key of
// each level's head.
//
// REQUIRES: Every mergingIterLevel in the heap has a head.
type mergingIterHeap struct {
	cmp   Compare
	items []mergingIterHeapItem
}

type mergingIterHeapItem struct {
	*mergingIterLevel
	winnerChild winnerChild
}

// winnerChild caches, for an interior heap item, which of its two children
// holds the smaller key. It is invalidated whenever the item's subtree
// changes, which saves a comparison on the common path where the same level
// keeps winning.
type winnerChild uint8

const (
	winnerChildUnknown winnerChild = iota
	winnerChildLeft
	winnerChildRight
)

// len returns the number of elements in the heap.
func (h *mergingIterHeap) len() int {
	return len(h.items)
}

// less is an internal method, to compare the elements at i and j.
func (h *mergingIterHeap) less(i, j int) bool {
	if c := h.cmp(h.items[i].head.Key, h.items[j].head.Key); c != 0 {
		return c < 0
	}
	return h.items[i].index < h.items[j].index
}

// swap is an internal method, used to swap the elements at i and j.
func (h *mergingIterHeap) swap(i, j int) {
	h.items[i].mergingIterLevel, h.items[j].mergingIterLevel =
		h.items[j].mergingIterLevel, h.items[i].mergingIterLevel
}

// init initializes the heap.
func (h *mergingIterHeap) init() {
	for i := range h.items {
		h.items[i].winnerChild = winnerChildUnknown
	}
	// heapify
	n := h.len()
	for i := n/2 - 1; i >= 0; i-- {
		h.down(i, n)
	}
}

// fixTop restores the heap property after the head of the top level has been
// replaced.
func (h *mergingIterHeap) fixTop() {
	h.down(0, h.len())
}

// pop removes the top of the heap.
func (h *mergingIterHeap) pop() *mergingIterLevel {
	n := h.len() - 1
	h.swap(0, n)
	// The parent of n does not know which child is the winner, but since index
	// n is removed it has at most one child left and winnerChild is irrelevant.
	h.down(0, n)
	item := h.items[n]
	h.items = h.items[:n]
	return item.mergingIterLevel
}

// down is an internal method. It moves i down the heap, which has length n,
// until the heap property is restored.
func (h *mergingIterHeap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 { // j1 < 0 after int overflow
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n {
			if h.items[i].winnerChild == winnerChildUnknown {
				if h.less(j2, j1) {
					h.items[i].winnerChild = winnerChildRight
				} else {
					h.items[i].winnerChild = winnerChildLeft
				}
			} else if invariants.Enabled {
				wc := winnerChildUnknown
				if h.less(j1, j2) {
					wc = winnerChildLeft
				} else if h.less(j2, j1) {
					wc = winnerChildRight
				}
				if wc != winnerChildUnknown && wc != h.items[i].winnerChild {
					panic("winnerChild mismatch")
				}
			}
			if h.items[i].winnerChild == winnerChildRight {
				j = j2 // = 2*i + 2  // right child
			}
		}
		if !h.less(j, i) {
			break
		}
		// NB: j is a child of i.
		h.swap(i, j)
		h.items[i].winnerChild = winnerChildUnknown
		i = j
	}
}
