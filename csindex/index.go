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
Package csindex implements the compressed-sparse edge index: a pair of
fixed-bucket-count tables, one keyed by source vertex (CSR) and one keyed
by target vertex (CSC), each edge living in exactly one bucket of each
table. The bucket itself is a plain slice that grows by append, with no
fixed inline capacity, and is read by a linear scan rather than a
secondary hash - cheap for the handful of edges any single vertex
accumulates inside one time window.
*/
package csindex

import (
	"github.com/flowmatch/graphstream/edge"
)

/*
Index is a single-keyed table: either the CSR or the CSC half of a Dual.
*/
type Index struct {
	buckets []*bucket
	hash    edge.HashFunc
}

/*
New creates an Index with the given number of buckets. capacity should be
sized for the expected number of live vertices in one time window, the
same way a cluster member is sized by its graphCapacity flag.
*/
func New(capacity int, hash edge.HashFunc) *Index {
	if capacity < 1 {
		capacity = 1
	}

	buckets := make([]*bucket, capacity)
	for i := range buckets {
		buckets[i] = &bucket{}
	}

	return &Index{buckets: buckets, hash: hash}
}

func (idx *Index) bucketFor(v edge.VertexID) *bucket {
	return idx.buckets[idx.hash(v)%uint64(len(idx.buckets))]
}

/*
Insert places e into the bucket owned by v (the caller picks whether v is
e.Src or e.Dst).
*/
func (idx *Index) Insert(v edge.VertexID, e *edge.Edge) {
	idx.bucketFor(v).insert(v, e)
}

/*
Scan walks every edge stored under exactly v, in insertion order, until
fn returns false. A vertex that collides into the same bucket as v never
appears in the walk - the bucket resolves the collision by exact key
equality.
*/
func (idx *Index) Scan(v edge.VertexID, fn func(e *edge.Edge) bool) {
	idx.bucketFor(v).scan(v, fn)
}

/*
ExpireBefore removes every edge whose TEnd is strictly before cutoff from
every bucket and returns the total removed. This is the lazy-expiry sweep
referenced by the graph capacity invariant: buckets are never scanned for
expiry on every insert, only on a periodic sweep or when a bucket is
read.
*/
func (idx *Index) ExpireBefore(cutoff float64) int {
	removed := 0
	for _, b := range idx.buckets {
		removed += b.expire(cutoff)
	}
	return removed
}

/*
Len returns the number of edges currently stored across all buckets.
*/
func (idx *Index) Len() int {
	total := 0
	for _, b := range idx.buckets {
		total += b.size()
	}
	return total
}

/*
Role selects which half of a Dual a Neighbors lookup consults: RoleSource
asks the CSR half (v must be an edge's source), RoleTarget asks the CSC
half (v must be an edge's target).
*/
type Role int

const (
	RoleSource Role = iota
	RoleTarget
)

/*
Dual bundles the CSR and CSC halves of the index so that a single Insert
keeps both consistent: every edge lives in CSR[owner(src)] and
CSC[owner(dst)].
*/
type Dual struct {
	CSR *Index
	CSC *Index
}

/*
NewDual creates a Dual with matching capacity and hash function for both
halves.
*/
func NewDual(capacity int, hash edge.HashFunc) *Dual {
	return &Dual{
		CSR: New(capacity, hash),
		CSC: New(capacity, hash),
	}
}

/*
Insert records e in both halves of the dual index.
*/
func (d *Dual) Insert(e *edge.Edge) {
	d.CSR.Insert(e.Src, e)
	d.CSC.Insert(e.Dst, e)
}

/*
ExpireBefore sweeps both halves and returns the total number of edge
references removed (an edge touched by both a CSR and a CSC bucket counts
twice, same as the two tables count it as two stored references of one
edge).
*/
func (d *Dual) ExpireBefore(cutoff float64) int {
	return d.CSR.ExpireBefore(cutoff) + d.CSC.ExpireBefore(cutoff)
}

/*
Neighbors is the linear-scan lookup at the heart of the index: every edge
filed under v in the half role selects, restricted to [timeLo, timeHi] by
TStart, in insertion order, until fn returns false. Entries that have
already fully expired relative to timeLo (TEnd < timeLo) are dropped from
the bucket in the same pass rather than merely skipped, so a caller that
calls Neighbors regularly never needs a separate ExpireBefore sweep to
keep a hot vertex's bucket from growing without bound.
*/
func (d *Dual) Neighbors(v edge.VertexID, timeLo, timeHi float64, role Role, fn func(e *edge.Edge) bool) {
	idx := d.CSR
	if role == RoleTarget {
		idx = d.CSC
	}

	idx.bucketFor(v).expire(timeLo)

	idx.Scan(v, func(e *edge.Edge) bool {
		if e.TStart < timeLo || e.TStart > timeHi {
			return true
		}
		return fn(e)
	})
}
