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
Package store implements the GraphStore facade: the component that binds
the compressed-sparse index, the SubgraphQueryResultMap, the
EdgeRequestMap and the cluster Partitioner into the single consume/
registerQuery/terminate surface an ingest caller drives. It is grounded
on the lifecycle shape of the teacher's httputil.HTTPServer (a Running
flag plus a Shutdown channel, generalized here into a four-state
Init/Running/Terminating/Terminated machine) and on
cluster/manager.Client for owning the transport's lifetime alongside the
data structures it feeds.
*/
package store

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/flowmatch/graphstream/cluster"
	"github.com/flowmatch/graphstream/csindex"
	"github.com/flowmatch/graphstream/edge"
	"github.com/flowmatch/graphstream/feature"
	"github.com/flowmatch/graphstream/internal/wire"
	"github.com/flowmatch/graphstream/matchmap"
	"github.com/flowmatch/graphstream/metrics"
	"github.com/flowmatch/graphstream/query"
	"github.com/flowmatch/graphstream/reqmap"
)

/*
State is one position in the GraphStore lifecycle:
Init -> Running -> Terminating -> Terminated.
*/
type State int32

const (
	StateInit State = iota
	StateRunning
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Init"
	}
}

/*
ErrNotRunning is returned by Ingest when the store is not in the Running
state.
*/
var ErrNotRunning = errors.New("store: graphstore is not running")

/*
Config bundles everything a GraphStore needs at construction. Partitioner
may be nil for a single-node, transport-free run (every vertex is then
trivially local).
*/
type Config struct {
	NodeID          int
	GraphCapacity   int
	TableCapacity   int
	RequestCapacity int
	Hash            edge.HashFunc
	Lookup          feature.Lookup
	Partitioner     *cluster.Partitioner
	Counters        *metrics.Counters
	Codec           TupleCodec
}

/*
GraphStore is the per-node facade binding the index, result map,
request map and cluster transport into a single ingest/query surface.
*/
type GraphStore struct {
	cfg Config

	index    *csindex.Dual
	matches  *matchmap.Map
	requests *reqmap.Map

	nextEdgeID uint64
	nextReqID  uint64

	edgePulls uint64

	state int32

	resultsMu sync.Mutex
	results   []*matchmap.Match

	terminateOnce sync.Once
}

/*
New creates a GraphStore in the Init state. Call Start before the first
Ingest.
*/
func New(cfg Config) *GraphStore {
	if cfg.Codec == nil {
		cfg.Codec = GobCodec{}
	}

	gs := &GraphStore{
		cfg:      cfg,
		index:    csindex.NewDual(cfg.GraphCapacity, cfg.Hash),
		requests: reqmap.New(cfg.RequestCapacity, cfg.Hash),
	}

	gs.matches = matchmap.New(cfg.TableCapacity, cfg.Hash, cfg.Lookup)
	gs.matches.Owner = gs.isLocal

	return gs
}

func (gs *GraphStore) isLocal(v edge.VertexID) bool {
	if gs.cfg.Partitioner == nil {
		return true
	}
	return gs.cfg.Partitioner.IsLocal(v)
}

func (gs *GraphStore) owner(v edge.VertexID) int {
	if gs.cfg.Partitioner == nil {
		return gs.cfg.NodeID
	}
	return gs.cfg.Partitioner.Owner(v)
}

/*
Start transitions Init -> Running, opening the Partitioner's sockets (if
one was configured) and wiring its pull callbacks to this store.
*/
func (gs *GraphStore) Start() error {
	if !atomic.CompareAndSwapInt32(&gs.state, int32(StateInit), int32(StateRunning)) {
		return errors.New("store: graphstore already started")
	}

	if gs.cfg.Partitioner != nil {
		if err := gs.cfg.Partitioner.Start(gs.onRemoteEdge, gs.onRemoteRequest); err != nil {
			atomic.StoreInt32(&gs.state, int32(StateInit))
			return err
		}
	}

	return nil
}

/*
State reports the current lifecycle state.
*/
func (gs *GraphStore) State() State {
	return State(atomic.LoadInt32(&gs.state))
}

/*
RegisterQuery installs a finalized query into the match engine. It rejects
a query that has not been finalized.
*/
func (gs *GraphStore) RegisterQuery(q *query.Query) error {
	return gs.matches.Register(q)
}

/*
Ingest is the entry point for an edge this node reads from its shard of
the input stream. It assigns the edge an id, then routes it: a node
consumes an edge in full whenever it owns the source or the target
vertex, and forwards a copy (as a partitioned push, never a reply) to any
other owner that also needs it.
*/
func (gs *GraphStore) Ingest(src, dst edge.VertexID, tstart, tend float64, tuple interface{}) (*edge.Edge, error) {
	if gs.State() != StateRunning {
		return nil, ErrNotRunning
	}

	id := atomic.AddUint64(&gs.nextEdgeID, 1)
	e := edge.New(id, src, dst, tstart, tend, tuple)

	ownerSrc := gs.owner(src)
	ownerDst := gs.owner(dst)

	if ownerSrc == gs.cfg.NodeID {
		gs.consume(e)
	} else {
		gs.forward(ownerSrc, e)
	}

	if ownerDst != ownerSrc {
		if ownerDst == gs.cfg.NodeID {
			gs.consume(e)
		} else {
			gs.forward(ownerDst, e)
		}
	}

	return e, nil
}

func (gs *GraphStore) forward(peer int, e *edge.Edge) {
	if gs.cfg.Partitioner == nil {
		return
	}
	gs.cfg.Partitioner.SendEdge(peer, e, gs.cfg.Codec.Encode(e.Tuple))
}

/*
consume is the hot path: index, probe, seed+advance.
*/
func (gs *GraphStore) consume(e *edge.Edge) {
	gs.index.Insert(e)

	for _, r := range gs.requests.Probe(e) {
		gs.fulfil(r, e)
	}

	completed, needs := gs.matches.Consume(e)
	gs.finish(completed, needs)
}

func (gs *GraphStore) fulfil(r *reqmap.Request, e *edge.Edge) {
	atomic.AddUint64(&gs.edgePulls, 1)
	if gs.cfg.Counters != nil {
		gs.cfg.Counters.EdgePulls.Inc()
	}
	if gs.cfg.Partitioner == nil {
		return
	}
	gs.cfg.Partitioner.SendEdgeReply(r.Requester, e, gs.cfg.Codec.Encode(e.Tuple))
}

func (gs *GraphStore) finish(completed []*matchmap.Match, needs []matchmap.RemoteNeed) {
	if len(completed) > 0 {
		gs.resultsMu.Lock()
		gs.results = append(gs.results, completed...)
		gs.resultsMu.Unlock()

		if gs.cfg.Counters != nil {
			for range completed {
				gs.cfg.Counters.Results.Inc()
			}
		}
	}

	for _, need := range needs {
		gs.emitRequest(need)
	}
}

func (gs *GraphStore) emitRequest(need matchmap.RemoteNeed) {
	if gs.cfg.Partitioner == nil {
		return
	}

	owner := gs.owner(need.Vertex)
	if owner == gs.cfg.NodeID {
		return
	}

	reqID := atomic.AddUint64(&gs.nextReqID, 1)

	gs.cfg.Partitioner.SendRequest(owner, &wire.EdgeRequestMessage{
		RequestID: reqID,
		Vertex:    need.Vertex,
		Role:      toWireRole(need.Role),
		TLo:       need.TLo,
		THi:       need.THi,
		Requester: gs.cfg.NodeID,
		QueryID:   need.QueryID,
		Slot:      need.Slot,
	})
}

/*
onRemoteEdge is the Partitioner's pull callback. A non-reply edge is a
partitioned push: this node owns one of its endpoints and runs the full
consume pipeline. A reply edge fulfills a request this node issued
earlier: it only advances the waiting match, since this node does not own
either endpoint and must not re-index or re-probe someone else's edge.
*/
func (gs *GraphStore) onRemoteEdge(e *edge.Edge, reply bool) {
	e.Tuple = gs.cfg.Codec.Decode(tupleBytes(e.Tuple))

	if reply {
		completed, needs := gs.matches.Advance(e)
		gs.finish(completed, needs)
		return
	}

	gs.consume(e)
}

func tupleBytes(tuple interface{}) []byte {
	b, _ := tuple.([]byte)
	return b
}

func (gs *GraphStore) onRemoteRequest(msg *wire.EdgeRequestMessage) {
	req := &reqmap.Request{
		RequestID: msg.RequestID,
		Vertex:    msg.Vertex,
		Role:      fromWireRole(msg.Role),
		TLo:       msg.TLo,
		THi:       msg.THi,
		Requester: msg.Requester,
		QueryID:   msg.QueryID,
		Slot:      msg.Slot,
		Deadline:  msg.THi,
	}
	gs.requests.Insert(req)

	gs.index.Neighbors(req.Vertex, req.TLo, req.THi, toIndexRole(req.Role), func(e *edge.Edge) bool {
		gs.fulfil(req, e)
		return true
	})
}

/*
toIndexRole converts a reqmap.Role to the csindex.Role that reads the
same half of the Dual - a request asking for Vertex as Src watches the
CSR half, exactly where an edge with that vertex as Src was inserted.
*/
func toIndexRole(r reqmap.Role) csindex.Role {
	if r == reqmap.RoleTarget {
		return csindex.RoleTarget
	}
	return csindex.RoleSource
}

func toWireRole(r matchmap.Role) wire.Role {
	if r == matchmap.RoleTo {
		return wire.RoleTarget
	}
	return wire.RoleSource
}

func fromWireRole(r wire.Role) reqmap.Role {
	if r == wire.RoleTarget {
		return reqmap.RoleTarget
	}
	return reqmap.RoleSource
}

/*
Sweep drops every partial match, outstanding request and indexed edge
whose deadline has passed before now. Correctness does not depend on
calling this - every read path already filters by time - but without it
memory grows unbounded; a node should call it periodically from a
background goroutine.
*/
func (gs *GraphStore) Sweep(now float64) {
	gs.index.ExpireBefore(now)
	gs.matches.ExpireBefore(now)
	gs.requests.ExpireBefore(now)
}

/*
GetNumResults returns the number of completed matches currently queued.
*/
func (gs *GraphStore) GetNumResults() int {
	gs.resultsMu.Lock()
	defer gs.resultsMu.Unlock()
	return len(gs.results)
}

/*
ClearResults drains and returns every completed match queued so far.
*/
func (gs *GraphStore) ClearResults() []*matchmap.Match {
	gs.resultsMu.Lock()
	defer gs.resultsMu.Unlock()

	cleared := gs.results
	gs.results = nil
	return cleared
}

/*
GetTotalEdgePulls returns the number of edges this node has shipped to
peers in fulfillment of their outstanding edge requests.
*/
func (gs *GraphStore) GetTotalEdgePulls() uint64 {
	return atomic.LoadUint64(&gs.edgePulls)
}

/*
Terminate drives Running -> Terminating -> Terminated. It is idempotent:
a second call observes the already-terminated state and returns
immediately.
*/
func (gs *GraphStore) Terminate() State {
	gs.terminateOnce.Do(func() {
		atomic.StoreInt32(&gs.state, int32(StateTerminating))
		if gs.cfg.Partitioner != nil {
			gs.cfg.Partitioner.Close()
		}
		atomic.StoreInt32(&gs.state, int32(StateTerminated))
	})

	return gs.State()
}
