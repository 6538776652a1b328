/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package feature

import (
	"container/heap"
	"sync"

	"github.com/flowmatch/graphstream/edge"
)

/*
TopK tracks the k most-visited vertices and answers Membership/Contains
against that set under a single feature id. It is the collaborator used
by the watering-hole style detection: benign traffic keeps a small set of
popular destinations "hot", and a query predicate checks whether a
candidate destination is (or is not) currently in that set.
*/
type TopK struct {
	mu    sync.Mutex
	k     int
	count map[edge.VertexID]int
	hot   map[edge.VertexID]bool
	heap  countHeap
}

/*
NewTopK creates a tracker that keeps the k most-visited vertices hot.
*/
func NewTopK(k int) *TopK {
	if k < 1 {
		k = 1
	}
	return &TopK{
		k:     k,
		count: make(map[edge.VertexID]int),
		hot:   make(map[edge.VertexID]bool, k),
	}
}

/*
Observe records a visit to v and recomputes membership in the hot set.
*/
func (t *TopK) Observe(v edge.VertexID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count[v]++
	heap.Push(&t.heap, countEntry{vertex: v, count: t.count[v]})

	t.rebuildLocked()
}

func (t *TopK) rebuildLocked() {
	// Drain the heap down to the k freshest distinct entries whose
	// recorded count still matches the current count - stale entries
	// (superseded by a later Observe of the same vertex) are discarded
	// as they surface.
	seen := make(map[edge.VertexID]bool, t.k)
	hot := make(map[edge.VertexID]bool, t.k)
	var kept countHeap

	for t.heap.Len() > 0 && len(hot) < t.k {
		e := heap.Pop(&t.heap).(countEntry)
		if seen[e.vertex] {
			continue
		}
		seen[e.vertex] = true
		if t.count[e.vertex] != e.count {
			continue
		}
		hot[e.vertex] = true
		kept = append(kept, e)
	}

	for _, e := range kept {
		heap.Push(&t.heap, e)
	}

	t.hot = hot
}

func (t *TopK) Contains(featureID string, v edge.VertexID) bool {
	return t.Membership(featureID, v) == In
}

func (t *TopK) Membership(featureID string, v edge.VertexID) Membership {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.count[v]; !ok {
		return Unknown
	}
	if t.hot[v] {
		return In
	}
	return NotIn
}

type countEntry struct {
	vertex edge.VertexID
	count  int
}

type countHeap []countEntry

func (h countHeap) Len() int            { return len(h) }
func (h countHeap) Less(i, j int) bool  { return h[i].count > h[j].count }
func (h countHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *countHeap) Push(x interface{}) { *h = append(*h, x.(countEntry)) }
func (h *countHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
