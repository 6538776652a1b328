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
Package matchmap implements the SubgraphQueryResultMap: the bucket-hashed
table of partial matches a GraphStore advances as edges arrive. A partial
match is filed under a fingerprint of (query id, next slot, vertex,
role) so that the arrival of an edge touching that vertex finds every
match waiting to extend through it with a single bucket scan, the same
way the compressed-sparse index finds every edge touching a vertex.
*/
package matchmap

import (
	"sync"

	"github.com/flowmatch/graphstream/edge"
	"github.com/flowmatch/graphstream/feature"
	"github.com/flowmatch/graphstream/query"
)

/*
Role distinguishes whether a bound vertex is expected as the From or the
To endpoint of the slot it will help advance.
*/
type Role int

const (
	RoleFrom Role = iota
	RoleTo
)

/*
edgeTime records the start/end time of the edge bound to one query slot,
kept around so that later slots can express constraints relative to an
earlier slot's time rather than only to literals.
*/
type edgeTime struct {
	start, end float64
}

/*
Match is a partial (or, once Completed, full) embedding of a query.
*/
type Match struct {
	QueryID   uint64
	NextSlot  int
	EdgeIDs   []uint64
	Bindings  map[string]edge.VertexID
	Times     map[string]edgeTime
	Deadline  float64
	Completed bool
}

func (m *Match) hasEdge(id uint64) bool {
	for _, existing := range m.EdgeIDs {
		if existing == id {
			return true
		}
	}
	return false
}

func (m *Match) clone() *Match {
	bindings := make(map[string]edge.VertexID, len(m.Bindings))
	for k, v := range m.Bindings {
		bindings[k] = v
	}
	times := make(map[string]edgeTime, len(m.Times))
	for k, v := range m.Times {
		times[k] = v
	}
	edgeIDs := make([]uint64, len(m.EdgeIDs))
	copy(edgeIDs, m.EdgeIDs)

	return &Match{
		QueryID:  m.QueryID,
		NextSlot: m.NextSlot,
		EdgeIDs:  edgeIDs,
		Bindings: bindings,
		Times:    times,
		Deadline: m.Deadline,
	}
}

type fingerprint struct {
	queryID uint64
	slot    int
	vertex  edge.VertexID
	role    Role
}

type entry struct {
	fp    fingerprint
	match *Match
}

type bucket struct {
	mu      sync.Mutex
	entries []*entry
}

func (b *bucket) put(e *entry) {
	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()
}

/*
scan returns every entry matching fp without removing it. A waiting
partial match is never consumed by a single extension: it stays filed
until its deadline so that every later qualifying edge can extend it
independently, which is what produces the cartesian n*(n-1)/2 count for
a two-edge chain fed n edges into the shared vertex. Callers extend a
candidate by cloning it (see Map.tryAdvance); the original entry here is
left untouched, and self-collision (an edge matching the very entry it
just seeded) is prevented by the distinct-edge-id check in tryAdvance,
not by removal.
*/
func (b *bucket) scan(fp fingerprint) []*Match {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*Match
	for _, e := range b.entries {
		if e.fp == fp {
			matches = append(matches, e.match)
		}
	}

	return matches
}

func (b *bucket) expire(before float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.entries[:0]
	removed := 0

	for _, e := range b.entries {
		if e.match.Deadline < before {
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
Map is the SubgraphQueryResultMap: a registry of finalized queries plus
the bucket-hashed table of their partial matches.
*/
type Map struct {
	buckets []*bucket
	hash    edge.HashFunc

	mu      sync.RWMutex
	queries map[uint64]*query.Query

	lookup feature.Lookup

	// Owner reports whether v is owned by this node. A nil Owner treats
	// every vertex as local, which is correct for a single-node run (no
	// RemoteNeed is ever produced).
	Owner func(v edge.VertexID) bool
}

/*
RemoteNeed is produced when a partial match's next slot is filed under a
vertex this node does not own: the match is still stored locally (it
waits here for the qualifying edge to arrive, same as any other filed
match), but the caller must also ask the owning node to forward matching
edges, via an EdgeRequest over the Partitioner.
*/
type RemoteNeed struct {
	QueryID  uint64
	Slot     int
	Vertex   edge.VertexID
	Role     Role
	TLo, THi float64
}

/*
New creates an empty Map. capacity is the bucket count, sized the same
way as a CompressedSparseIndex. lookup may be nil if no registered query
uses a vertex constraint.
*/
func New(capacity int, hash edge.HashFunc, lookup feature.Lookup) *Map {
	if capacity < 1 {
		capacity = 1
	}

	buckets := make([]*bucket, capacity)
	for i := range buckets {
		buckets[i] = &bucket{}
	}

	return &Map{
		buckets: buckets,
		hash:    hash,
		queries: make(map[uint64]*query.Query),
		lookup:  lookup,
	}
}

func (m *Map) bucketFor(v edge.VertexID) *bucket {
	return m.buckets[m.hash(v)%uint64(len(m.buckets))]
}

/*
Register adds a finalized query to the map. It is an error to register a
query that has not been finalized.
*/
func (m *Map) Register(q *query.Query) error {
	if !q.Finalized() {
		return query.ErrNotFinalized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries[q.ID] = q

	return nil
}

/*
Len returns the number of partial matches currently filed across all
buckets.
*/
func (m *Map) Len() int {
	total := 0
	for _, b := range m.buckets {
		total += b.size()
	}
	return total
}

/*
ExpireBefore drops every partial match whose deadline is before cutoff.
*/
func (m *Map) ExpireBefore(cutoff float64) int {
	removed := 0
	for _, b := range m.buckets {
		removed += b.expire(cutoff)
	}
	return removed
}

/*
Consume feeds one edge through every registered query: it seeds new
partial matches from slot 0 and advances any partial match waiting on
this edge's endpoints, returning every match that completed as a result
of this edge. Cartesian semantics apply - a single edge may complete, or
advance, more than one distinct partial match.
*/
func (m *Map) Consume(e *edge.Edge) ([]*Match, []RemoteNeed) {
	m.mu.RLock()
	queries := make([]*query.Query, 0, len(m.queries))
	for _, q := range m.queries {
		queries = append(queries, q)
	}
	m.mu.RUnlock()

	var completed []*Match
	var needs []RemoteNeed

	for _, q := range queries {
		c, n := m.seed(q, e)
		completed = append(completed, c...)
		needs = append(needs, n...)

		c, n = m.advance(q, e)
		completed = append(completed, c...)
		needs = append(needs, n...)
	}

	return completed, needs
}

/*
Advance feeds e through every registered query's advance step only,
skipping seed. A GraphStore uses this for an edge that arrived as the
fulfillment of a remote EdgeRequest: the edge belongs to neither of this
node's own vertices, so it must only extend matches already waiting on
it, never start a new match here (the node that owns the edge's endpoint
already seeded it when it first ingested the edge).
*/
func (m *Map) Advance(e *edge.Edge) ([]*Match, []RemoteNeed) {
	m.mu.RLock()
	queries := make([]*query.Query, 0, len(m.queries))
	for _, q := range m.queries {
		queries = append(queries, q)
	}
	m.mu.RUnlock()

	var completed []*Match
	var needs []RemoteNeed

	for _, q := range queries {
		c, n := m.advance(q, e)
		completed = append(completed, c...)
		needs = append(needs, n...)
	}

	return completed, needs
}

func (m *Map) seed(q *query.Query, e *edge.Edge) ([]*Match, []RemoteNeed) {
	slot := q.Slots[0]

	if !matchesTimes(slot.Times, nil, e) {
		return nil, nil
	}
	if !m.satisfiesVertex(q, slot.From, e.Src) || !m.satisfiesVertex(q, slot.To, e.Dst) {
		return nil, nil
	}

	match := &Match{
		QueryID:  q.ID,
		NextSlot: 1,
		EdgeIDs:  []uint64{e.ID},
		Bindings: map[string]edge.VertexID{slot.From: e.Src, slot.To: e.Dst},
		Times:    map[string]edgeTime{slot.Name: {e.TStart, e.TEnd}},
		Deadline: e.TStart + q.Window,
	}

	return m.file(q, match)
}

/*
file either completes match (if its next slot runs past the end of the
query) or stores it under the fingerprint of the vertex it is now waiting
on. If that vertex is not owned by this node, file also returns a
RemoteNeed so the caller can ask the owning node to forward qualifying
edges - the match itself still lives here, filed exactly as it would be
for a local vertex, and simply waits rather than being shipped elsewhere.
*/
func (m *Map) file(q *query.Query, match *Match) ([]*Match, []RemoteNeed) {
	if match.NextSlot >= len(q.Slots) {
		match.Completed = true
		return []*Match{match}, nil
	}

	slot := q.Slots[match.NextSlot]

	// A slot may have both endpoints already bound (the edge that closes
	// a cycle, e.g. the triangle scenario): file under exactly one
	// fingerprint in that case, never both, or the arriving edge would
	// be found twice in the same Consume call and double-complete the
	// match.
	var v edge.VertexID
	var r Role
	switch {
	case slot.FromBound:
		v, r = match.Bindings[slot.From], RoleFrom
	case slot.ToBound:
		v, r = match.Bindings[slot.To], RoleTo
	default:
		return nil, nil
	}

	m.bucketFor(v).put(&entry{fp: fingerprint{q.ID, match.NextSlot, v, r}, match: match})

	var needs []RemoteNeed
	if m.Owner != nil && !m.Owner(v) {
		needs = append(needs, RemoteNeed{
			QueryID: q.ID, Slot: match.NextSlot, Vertex: v, Role: r,
			TLo: match.Deadline - q.Window, THi: match.Deadline,
		})
	}

	return nil, needs
}

func (m *Map) advance(q *query.Query, e *edge.Edge) ([]*Match, []RemoteNeed) {
	var completed []*Match
	var needs []RemoteNeed

	for slotIdx := 1; slotIdx < len(q.Slots); slotIdx++ {
		slot := q.Slots[slotIdx]

		// Mirror file's choice of primary fingerprint: probe by From
		// whenever From is bound, falling back to To only when From is
		// free, so a fully-bound (cycle-closing) slot is probed once.
		var c []*Match
		var n []RemoteNeed
		switch {
		case slot.FromBound:
			c, n = m.tryAdvance(q, slot, slotIdx, RoleFrom, e)
		case slot.ToBound:
			c, n = m.tryAdvance(q, slot, slotIdx, RoleTo, e)
		}
		completed = append(completed, c...)
		needs = append(needs, n...)
	}

	return completed, needs
}

func (m *Map) tryAdvance(q *query.Query, slot query.Slot, slotIdx int, r Role, e *edge.Edge) ([]*Match, []RemoteNeed) {
	var vertex edge.VertexID
	switch r {
	case RoleFrom:
		vertex = e.Src
	case RoleTo:
		vertex = e.Dst
	}

	candidates := m.bucketFor(vertex).scan(fingerprint{q.ID, slotIdx, vertex, r})

	var completed []*Match
	var needs []RemoteNeed

	for _, candidate := range candidates {
		// A match past its deadline may still be filed (until ExpireBefore
		// removes it) but must never be extended.
		if e.TStart > candidate.Deadline {
			continue
		}

		next := candidate.clone()

		// The other endpoint of this slot, if already bound, must
		// agree with the value carried by the candidate match;
		// otherwise this edge extends the match via a fresh vertex.
		other, otherBound, otherIsFrom := otherEndpoint(slot, r)
		otherVal := edgeEndpoint(e, otherIsFrom)

		if otherBound {
			if bound, ok := next.Bindings[other]; !ok || bound != otherVal {
				continue
			}
		}

		if next.hasEdge(e.ID) {
			continue
		}

		if !matchesTimes(slot.Times, next.Times, e) {
			continue
		}
		if !m.satisfiesVertex(q, other, otherVal) {
			continue
		}

		next.Bindings[other] = otherVal
		next.EdgeIDs = append(next.EdgeIDs, e.ID)
		next.Times[slot.Name] = edgeTime{e.TStart, e.TEnd}
		next.NextSlot = slotIdx + 1

		c, n := m.file(q, next)
		completed = append(completed, c...)
		needs = append(needs, n...)
	}

	return completed, needs
}

/*
otherEndpoint returns the variable name of the slot endpoint opposite the
one being advanced through, whether it is already bound, and whether it
corresponds to the edge's From (source) side.
*/
func otherEndpoint(slot query.Slot, r Role) (name string, bound bool, isFrom bool) {
	if r == RoleFrom {
		return slot.To, slot.ToBound, false
	}
	return slot.From, slot.FromBound, true
}

func edgeEndpoint(e *edge.Edge, isFrom bool) edge.VertexID {
	if isFrom {
		return e.Src
	}
	return e.Dst
}

func (m *Map) satisfiesVertex(q *query.Query, v string, vertex edge.VertexID) bool {
	constraint, ok := q.VertexConstraints[v]
	if !ok {
		return true
	}

	if m.lookup == nil {
		return false
	}

	got := m.lookup.Membership(constraint.Feature, vertex)
	if got == feature.Unknown {
		// Conservative: an unresolved membership never satisfies a
		// constraint, whichever way the constraint wants it to go.
		return false
	}

	return got == constraint.Want
}

func matchesTimes(times []query.TimeExpr, history map[string]edgeTime, e *edge.Edge) bool {
	for _, t := range times {
		var value float64

		switch t.Field {
		case query.FieldStart:
			value = e.TStart
		case query.FieldEnd:
			value = e.TEnd
		}

		ref := t.Value
		if t.Ref != "" {
			prior, ok := history[t.Ref]
			if !ok {
				return false
			}
			switch t.Field {
			case query.FieldStart:
				ref = prior.start
			case query.FieldEnd:
				ref = prior.end
			}
		}

		switch t.Op {
		case query.OpEqual:
			if value != ref {
				return false
			}
		case query.OpGreaterThan:
			if !(value > ref) {
				return false
			}
		case query.OpLessThan:
			if !(value < ref) {
				return false
			}
		}
	}

	return true
}
