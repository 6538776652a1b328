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
Package wire implements a deterministic, length-prefixed gob encoding of
the two message shapes that cross the cluster, grounded on the teacher's own
use of encoding/gob to move RPC arguments between cluster members
(cluster/manager.Client registers its argument types with gob.Register
the same way EdgeMessage/EdgeRequestMessage are registered here). Framing
is explicit (a 4-byte big-endian length header) because the transport is
a raw push/pull socket rather than net/rpc, which frames for you.
*/
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/flowmatch/graphstream/edge"
)

func init() {
	gob.Register(EdgeMessage{})
	gob.Register(EdgeRequestMessage{})
}

/*
Role mirrors reqmap.Role on the wire: which endpoint of a candidate edge
must match the requested vertex.
*/
type Role int

const (
	RoleSource Role = iota
	RoleTarget
)

/*
EdgeMessage is the wire shape of one edge crossing between nodes, either
a partitioned inbound edge routed to its owner or an edge shipped in
fulfillment of a remote EdgeRequestMessage.
*/
type EdgeMessage struct {
	EdgeID uint64
	Src    edge.VertexID
	Dst    edge.VertexID
	TStart float64
	TEnd   float64
	Tuple  []byte // caller-opaque payload, already serialized by the tuple codec
	Reply  bool   // true when this edge fulfills a remote EdgeRequestMessage rather than a partitioned push
}

/*
EdgeRequestMessage is the wire shape of a peer asking for every edge
touching Vertex, in Role's position, within [TLo, THi].
*/
type EdgeRequestMessage struct {
	RequestID uint64
	Vertex    edge.VertexID
	Role      Role
	TLo, THi  float64
	Requester int // requester's node id, so the reply is routed back
	QueryID   uint64
	Slot      int
}

/*
Message is the union of frame payloads a socket can carry. Exactly one of
Edge/Request is non-nil.
*/
type Message struct {
	Edge    *EdgeMessage
	Request *EdgeRequestMessage
}

/*
Encode serializes one frame (4-byte big-endian length prefix + gob body)
and writes it to w.
*/
func Encode(w io.Writer, m *Message) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("wire: encode: %w", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))

	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}

	return nil
}

/*
Decode reads one frame from r and decodes it. Decode returns io.EOF
unchanged so a pull loop can tell a clean peer disconnect apart from a
genuine codec error.
*/
func Decode(r io.Reader) (*Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: read body: %w", err)
	}

	var m Message
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&m); err != nil {
		return nil, fmt.Errorf("wire: decode: %w", err)
	}

	return &m, nil
}
