/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cluster

import (
	"fmt"

	"github.com/flowmatch/graphstream/edge"
)

/*
Class distinguishes the two independent socket classes a node keeps:
request traffic is small and latency sensitive, edge traffic is bulk.
Separating them prevents request starvation under load.
*/
type Class int

const (
	ClassEdge Class = iota
	ClassRequest
)

func (c Class) String() string {
	if c == ClassRequest {
		return "request"
	}
	return "edge"
}

/*
Topology computes the hostname and port block assigned to every node and
socket. Ports are allocated contiguously from StartingPort: the system
reserves a block of 2 x NumNodes x NumSockets ports per class.
*/
type Topology struct {
	NumNodes     int
	Prefix       string // hostname prefix; "127.0.0.1" is used verbatim when NumNodes == 1
	StartingPort int
	NumSockets   int
}

/*
Host returns the hostname of node id.
*/
func (t Topology) Host(id int) string {
	if t.NumNodes == 1 || t.Prefix == "" {
		return "127.0.0.1"
	}
	return fmt.Sprintf("%s%d", t.Prefix, id)
}

/*
blockSize is the number of ports reserved for one traffic class:
2 x NumNodes x NumSockets. Only the first NumNodes x NumSockets ports of
each block are listened on (one per (node, socket) pair).
*/
func (t Topology) blockSize() int {
	return 2 * t.NumNodes * t.NumSockets
}

/*
Port returns the TCP port `target` listens on for socket `socketIdx` of
the given class. The listening port depends only on the target node and
socket index, not on the source: every peer dials the same fixed port to
reach a given (target, socket) pair, the way a normal server socket
works. source is accepted for call-site symmetry with SendEdge/SendRequest
but does not affect the result.
*/
func (t Topology) Port(class Class, source, target, socketIdx int) int {
	base := t.StartingPort
	if class == ClassRequest {
		base += t.blockSize()
	}

	offset := target*t.NumSockets + socketIdx

	return base + offset
}

/*
Owner computes owner(v) = hash(v) mod N, the cluster-wide deterministic
vertex-to-node assignment every component relies on.
*/
func Owner(v edge.VertexID, hash edge.HashFunc, numNodes int) int {
	if numNodes < 1 {
		return 0
	}
	return int(hash(v) % uint64(numNodes))
}
