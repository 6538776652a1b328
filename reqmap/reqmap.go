/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package reqmap implements the EdgeRequestMap: the producer-side mirror of
matchmap's SubgraphQueryResultMap. Where matchmap waits for an edge to
extend a partial match it already owns, reqmap waits for an edge to
satisfy a neighbor request a remote peer asked this node to watch for -
the same bucket-hashed-by-vertex shape, probed on every local insert
instead of on lookup.
*/
package reqmap

import (
	"sync"

	"github.com/flowmatch/graphstream/edge"
)

/*
Role names which endpoint of a candidate edge the requester wants to
match: the vertex must appear as Src (RoleSource) or Dst (RoleTarget).
*/
type Role int

const (
	RoleSource Role = iota
	RoleTarget
)

/*
Request is one outstanding "tell me every edge touching Vertex, in Role's
position, within [TLo, THi]" asked by Requester. QueryID/Slot identify
which partial match on the requester this will feed, so the requester can
re-associate the reply without a second round trip.
*/
type Request struct {
	RequestID uint64
	Vertex    edge.VertexID
	Role      Role
	TLo, THi  float64
	Requester int
	QueryID   uint64
	Slot      int
	Deadline  float64
}

type entry struct {
	req *Request
}

type bucket struct {
	mu      sync.Mutex
	entries []*entry
}

func (b *bucket) put(r *Request) {
	b.mu.Lock()
	b.entries = append(b.entries, &entry{req: r})
	b.mu.Unlock()
}

func (b *bucket) scan(v edge.VertexID, fn func(r *Request)) {
	b.mu.Lock()
	snapshot := make([]*Request, 0, len(b.entries))
	for _, e := range b.entries {
		if e.req.Vertex == v {
			snapshot = append(snapshot, e.req)
		}
	}
	b.mu.Unlock()

	for _, r := range snapshot {
		fn(r)
	}
}

func (b *bucket) expire(before float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.entries[:0]
	removed := 0

	for _, e := range b.entries {
		if e.req.Deadline < before {
			removed++
			continue
		}
		kept = append(kept, e)
	}

	b.entries = kept

	return removed
}

func (b *bucket) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

/*
Map is the EdgeRequestMap: a bucket-hashed table of outstanding Requests,
keyed on hash(vertex) exactly like a csindex.Index bucket, so that Probe
costs one bucket scan per insert regardless of how many distinct vertices
the map is watching.
*/
type Map struct {
	buckets []*bucket
	hash    edge.HashFunc
}

/*
New creates an empty Map with the given bucket count and hash function.
*/
func New(capacity int, hash edge.HashFunc) *Map {
	if capacity < 1 {
		capacity = 1
	}

	buckets := make([]*bucket, capacity)
	for i := range buckets {
		buckets[i] = &bucket{}
	}

	return &Map{buckets: buckets, hash: hash}
}

func (m *Map) bucketFor(v edge.VertexID) *bucket {
	return m.buckets[m.hash(v)%uint64(len(m.buckets))]
}

/*
Insert files a new outstanding request.
*/
func (m *Map) Insert(r *Request) {
	m.bucketFor(r.Vertex).put(r)
}

/*
Probe is called on every local CompressedSparseIndex insert. It reports
every outstanding request that e satisfies, so the caller (GraphStore) can
ship e to each request's Requester via the Partitioner. A single edge can
satisfy more than one outstanding request (several peers watching the
same vertex), and the request itself is not removed here - it stays
filed until its deadline, since the same vertex may see further qualifying
edges before the requester's partial match expires.
*/
func (m *Map) Probe(e *edge.Edge) []*Request {
	var hits []*Request

	for _, v := range []struct {
		vertex edge.VertexID
		role   Role
	}{{e.Src, RoleSource}, {e.Dst, RoleTarget}} {
		m.bucketFor(v.vertex).scan(v.vertex, func(r *Request) {
			if r.Role != v.role {
				return
			}
			if e.TStart < r.TLo || e.TStart > r.THi {
				return
			}
			hits = append(hits, r)
		})
	}

	return hits
}

/*
ExpireBefore drops every request whose deadline is before cutoff and
returns the count removed.
*/
func (m *Map) ExpireBefore(cutoff float64) int {
	removed := 0
	for _, b := range m.buckets {
		removed += b.expire(cutoff)
	}
	return removed
}

/*
Len returns the number of outstanding requests across all buckets.
*/
func (m *Map) Len() int {
	total := 0
	for _, b := range m.buckets {
		total += b.size()
	}
	return total
}
