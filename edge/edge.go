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
Package edge defines the immutable edge record which flows through every
component of the engine: the compressed-sparse index, the match map, the
edge request map and the cluster transport all operate on *Edge values
without ever mutating one.
*/
package edge

import "fmt"

/*
VertexID identifies a vertex in the streamed graph. Vertices are never
registered up front - an id simply appears the first time an edge
mentions it.
*/
type VertexID string

/*
HashFunc maps a vertex id to a 64 bit hash. The same function is used to
decide which cluster node owns a vertex (owner(v) = hash(v) mod N) and to
pick the bucket inside a local index, so every component that needs
consistent vertex ownership shares one HashFunc value.
*/
type HashFunc func(VertexID) uint64

/*
Edge is a single observation from the streamed netflow (or other
edge-shaped) source. ID is assigned locally by the ingesting node and is
only unique together with the id of the node that assigned it; Tuple
carries whatever payload the caller's feature computations need and is
opaque to every package in this module.
*/
type Edge struct {
	ID     uint64
	Src    VertexID
	Dst    VertexID
	TStart float64
	TEnd   float64
	Tuple  interface{}
}

/*
New creates an Edge. TStart must not be after TEnd; callers that stream
point events rather than intervals should pass the same value for both.
*/
func New(id uint64, src, dst VertexID, tstart, tend float64, tuple interface{}) *Edge {
	return &Edge{ID: id, Src: src, Dst: dst, TStart: tstart, TEnd: tend, Tuple: tuple}
}

func (e *Edge) String() string {
	return fmt.Sprintf("Edge(%d, %s->%s, [%v,%v])", e.ID, e.Src, e.Dst, e.TStart, e.TEnd)
}
