/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package csindex

import (
	"sync"

	"github.com/flowmatch/graphstream/edge"
)

/*
bucket holds the edges whose owning vertex hashes into this slot. Unlike
a hash map bucket which stores one value per key, a bucket here stores
every edge that currently touches the vertex - lookup is by full scan,
same as a hash tree bucket scans its key array once a collision occurs.
Locking is per bucket, never global, so two unrelated vertices that
happen to land in different buckets never contend.
*/
/*
entry pairs a stored edge with the vertex it was filed under, so that a
scan can filter by exact equality against the key it was actually
inserted with rather than guessing which of the edge's own two endpoints
that was (a single Index is always keyed consistently by source or by
target, but it is the caller, not the bucket, that knows which).
*/
type entry struct {
	vertex edge.VertexID
	edge   *edge.Edge
}

type bucket struct {
	mu      sync.Mutex
	entries []*entry
}

func (b *bucket) insert(v edge.VertexID, e *edge.Edge) {
	b.mu.Lock()
	b.entries = append(b.entries, &entry{vertex: v, edge: e})
	b.mu.Unlock()
}

/*
scan calls fn for every edge filed under exactly v, in insertion order,
until fn returns false. Two vertices that collide into the same bucket
never see each other's edges - the bucket's entries carry their own key,
not just the edge, so a collision is resolved by equality the same way
reqmap's bucket resolves it. fn may be called with edges that have
already expired by wall-clock time but not yet swept by expire - callers
that care about freshness must check TStart/TEnd themselves.
*/
func (b *bucket) scan(v edge.VertexID, fn func(e *edge.Edge) bool) {
	b.mu.Lock()
	snapshot := make([]*edge.Edge, 0, len(b.entries))
	for _, en := range b.entries {
		if en.vertex == v {
			snapshot = append(snapshot, en.edge)
		}
	}
	b.mu.Unlock()

	for _, e := range snapshot {
		if !fn(e) {
			return
		}
	}
}

/*
expire removes every entry whose edge's TEnd is strictly before the
cutoff and reports how many were removed.
*/
func (b *bucket) expire(cutoff float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.entries[:0]
	removed := 0

	for _, en := range b.entries {
		if en.edge.TEnd < cutoff {
			removed++
			continue
		}
		kept = append(kept, en)
	}

	b.entries = kept

	return removed
}

func (b *bucket) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
