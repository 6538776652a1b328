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
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmatch/graphstream/edge"
	"github.com/flowmatch/graphstream/internal/wire"
	"github.com/flowmatch/graphstream/metrics"
)

/*
Config bundles everything a Partitioner needs to open its listeners and
dial its peers.
*/
type Config struct {
	Topology       Topology
	NodeID         int
	HWM            int           // per-socket send queue bound; excess sends are dropped
	Timeout        time.Duration // per-send bound before a push is abandoned
	NumPullThreads int
	Counters       *metrics.Counters
	Hash           edge.HashFunc
}

/*
EdgeHandler is invoked by a pull thread for every decoded edge message.
reply is true when the edge fulfills an outstanding EdgeRequest this node
issued, false when it is a partitioned edge pushed to this node because it
owns one of the edge's endpoints.
*/
type EdgeHandler func(e *edge.Edge, reply bool)

/*
RequestHandler is invoked by a pull thread for every decoded edge-request
message.
*/
type RequestHandler func(req *wire.EdgeRequestMessage)

/*
socket is one outbound push connection, owned by exactly one sender
goroutine so that no two goroutines ever write to the same net.Conn.
Sends are buffered up to hwm; a full channel (or a send that blocks past
timeout once dequeued) is dropped rather than propagated as an error.
*/
type socket struct {
	class Class
	peer  int
	queue chan *wire.Message
	conn  net.Conn
	mu    sync.Mutex // guards dial/redial of conn
}

func newSocket(class Class, peer, hwm int) *socket {
	return &socket{class: class, peer: peer, queue: make(chan *wire.Message, hwm)}
}

/*
enqueue places m on the socket's send queue, non-blocking. A full queue
counts as a drop: the caller never blocks on a slow or unreachable peer.
*/
func (s *socket) enqueue(m *wire.Message, counters *metrics.Counters) bool {
	select {
	case s.queue <- m:
		return true
	default:
		bumpDropped(counters, s.class)
		LogDebug(fmt.Sprintf("cluster: dropped %s send to peer %d: queue full", s.class, s.peer))
		return false
	}
}

func bumpDropped(counters *metrics.Counters, class Class) {
	if counters == nil {
		return
	}
	if class == ClassRequest {
		counters.DroppedReq.Inc()
	} else {
		counters.DroppedEdge.Inc()
	}
}

/*
run is the sender goroutine body: it drains queue and writes each frame
to conn, redialing lazily and dropping (with a LogDebug line) whenever the
write itself cannot complete within timeout.
*/
func (s *socket) run(addr string, timeout time.Duration, counters *metrics.Counters, done <-chan struct{}) {
	for {
		select {
		case <-done:
			s.closeConn()
			return
		case m := <-s.queue:
			if err := s.send(addr, m, timeout); err != nil {
				bumpDropped(counters, s.class)
				LogDebug(fmt.Sprintf("cluster: dropped %s send to %s: %v", s.class, addr, err))
			}
		}
	}
}

func (s *socket) send(addr string, m *wire.Message, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return err
		}
		s.conn = conn
	}

	s.conn.SetWriteDeadline(time.Now().Add(timeout))

	if err := wire.Encode(s.conn, m); err != nil {
		s.conn.Close()
		s.conn = nil
		return err
	}

	return nil
}

func (s *socket) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

/*
Partitioner owns, per peer, numSockets push sockets per class, and runs
numPullThreads accept goroutines on each of this node's own listeners
(numSockets listeners per class), with one drain goroutine per accepted
connection; the goroutine count is not a fixed numPullThreads per class. It is
injected into a GraphStore at construction and destroyed at terminate, as
design note 9 prescribes for the shared transport context.
*/
type Partitioner struct {
	cfg Config

	edgeSockets [][]*socket // [peer][socketIdx]
	reqSockets  [][]*socket
	rr          []uint64 // round-robin counters, one per peer, shared by both classes

	onEdge    EdgeHandler
	onRequest RequestHandler

	listeners []net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

/*
New creates a Partitioner for cfg.NodeID but does not yet open listeners
or dial peers; call Start to do that once handlers are wired.
*/
func New(cfg Config) *Partitioner {
	n := cfg.Topology.NumNodes
	p := &Partitioner{
		cfg:         cfg,
		edgeSockets: make([][]*socket, n),
		reqSockets:  make([][]*socket, n),
		rr:          make([]uint64, n),
		conns:       make(map[net.Conn]struct{}),
		done:        make(chan struct{}),
	}

	for peer := 0; peer < n; peer++ {
		if peer == cfg.NodeID {
			continue
		}
		p.edgeSockets[peer] = make([]*socket, cfg.Topology.NumSockets)
		p.reqSockets[peer] = make([]*socket, cfg.Topology.NumSockets)
		for i := 0; i < cfg.Topology.NumSockets; i++ {
			p.edgeSockets[peer][i] = newSocket(ClassEdge, peer, cfg.HWM)
			p.reqSockets[peer][i] = newSocket(ClassRequest, peer, cfg.HWM)
		}
	}

	return p
}

/*
Start launches one sender goroutine per push socket and numPullThreads
accept goroutines per listener (see listen). onEdge/onRequest are called
inline on a pull goroutine, so they must not block for long - the
GraphStore's Consume path is cheap per edge by design (bucket-level
locks, no global lock).
*/
func (p *Partitioner) Start(onEdge EdgeHandler, onRequest RequestHandler) error {
	p.onEdge = onEdge
	p.onRequest = onRequest

	for peer, sockets := range p.edgeSockets {
		for i, s := range sockets {
			addr := fmt.Sprintf("%s:%d", p.cfg.Topology.Host(peer), p.cfg.Topology.Port(ClassEdge, p.cfg.NodeID, peer, i))
			p.wg.Add(1)
			go func(s *socket, addr string) {
				defer p.wg.Done()
				s.run(addr, p.cfg.Timeout, p.cfg.Counters, p.done)
			}(s, addr)
		}
	}
	for peer, sockets := range p.reqSockets {
		for i, s := range sockets {
			addr := fmt.Sprintf("%s:%d", p.cfg.Topology.Host(peer), p.cfg.Topology.Port(ClassRequest, p.cfg.NodeID, peer, i))
			p.wg.Add(1)
			go func(s *socket, addr string) {
				defer p.wg.Done()
				s.run(addr, p.cfg.Timeout, p.cfg.Counters, p.done)
			}(s, addr)
		}
	}

	if err := p.listen(ClassEdge); err != nil {
		return err
	}
	if err := p.listen(ClassRequest); err != nil {
		return err
	}

	return nil
}

/*
listen opens one listener per socket index on this node's reserved port
block for class, and fans out numPullThreads goroutines per listener to
drain accepted connections - the teacher's rpc.Accept + WaitGroup
shutdown coordination, adapted to a raw gob-framed stream instead of
net/rpc.
*/
func (p *Partitioner) listen(class Class) error {
	for i := 0; i < p.cfg.Topology.NumSockets; i++ {
		port := p.cfg.Topology.Port(class, 0, p.cfg.NodeID, i)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return fmt.Errorf("cluster: listen %s socket %d: %w", class, i, err)
		}

		p.listeners = append(p.listeners, ln)

		for t := 0; t < p.cfg.NumPullThreads; t++ {
			p.wg.Add(1)
			go p.acceptLoop(ln, class)
		}
	}

	return nil
}

func (p *Partitioner) acceptLoop(ln net.Listener, class Class) {
	defer p.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-p.done:
				return
			default:
				LogInfo(fmt.Sprintf("cluster: accept error on %s listener: %v", class, err))
				return
			}
		}

		p.connsMu.Lock()
		p.conns[conn] = struct{}{}
		p.connsMu.Unlock()

		p.wg.Add(1)
		go p.drain(conn, class)
	}
}

func (p *Partitioner) drain(conn net.Conn, class Class) {
	defer p.wg.Done()
	defer func() {
		conn.Close()
		p.connsMu.Lock()
		delete(p.conns, conn)
		p.connsMu.Unlock()
	}()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		m, err := wire.Decode(conn)
		if err != nil {
			return
		}

		if m.Edge != nil && p.onEdge != nil {
			if p.cfg.Counters != nil {
				p.cfg.Counters.EdgePushes.Inc()
			}
			p.onEdge(&edge.Edge{
				ID: m.Edge.EdgeID, Src: m.Edge.Src, Dst: m.Edge.Dst,
				TStart: m.Edge.TStart, TEnd: m.Edge.TEnd, Tuple: m.Edge.Tuple,
			}, m.Edge.Reply)
		}
		if m.Request != nil && p.onRequest != nil {
			p.onRequest(m.Request)
		}
	}
}

/*
nextSocket round-robins across a peer's numSockets to spread load, while
keeping FIFO per chosen socket (ordering is only ever guaranteed
per-socket, never across sockets).
*/
func (p *Partitioner) nextSocket(peer int) int {
	n := uint64(p.cfg.Topology.NumSockets)
	if n == 0 {
		return 0
	}
	idx := atomic.AddUint64(&p.rr[peer], 1)
	return int(idx % n)
}

/*
SendEdge ships e to peer over one of its edge-class sockets, marked as a
partitioned push (reply=false). The send is best-effort: a full hwm queue
drops the message and bumps a counter instead of blocking.
*/
func (p *Partitioner) SendEdge(peer int, e *edge.Edge, tuple []byte) {
	p.sendEdge(peer, e, tuple, false)
}

/*
SendEdgeReply ships e to peer marked as the fulfillment of an outstanding
EdgeRequest, so the receiver's GraphStore advances its waiting partial
match without also re-indexing or re-probing an edge it does not own.
*/
func (p *Partitioner) SendEdgeReply(peer int, e *edge.Edge, tuple []byte) {
	p.sendEdge(peer, e, tuple, true)
}

func (p *Partitioner) sendEdge(peer int, e *edge.Edge, tuple []byte, reply bool) {
	if peer == p.cfg.NodeID || peer < 0 || peer >= len(p.edgeSockets) {
		return
	}

	s := p.edgeSockets[peer][p.nextSocket(peer)]
	s.enqueue(&wire.Message{Edge: &wire.EdgeMessage{
		EdgeID: e.ID, Src: e.Src, Dst: e.Dst, TStart: e.TStart, TEnd: e.TEnd, Tuple: tuple, Reply: reply,
	}}, p.cfg.Counters)
}

/*
SendRequest ships req to its owning peer over one of the peer's
request-class sockets.
*/
func (p *Partitioner) SendRequest(peer int, req *wire.EdgeRequestMessage) {
	if peer == p.cfg.NodeID || peer < 0 || peer >= len(p.reqSockets) {
		return
	}

	s := p.reqSockets[peer][p.nextSocket(peer)]
	if s.enqueue(&wire.Message{Request: req}, p.cfg.Counters) && p.cfg.Counters != nil {
		p.cfg.Counters.RequestsSent.Inc()
	}
}

/*
Owner reports the node id that owns v.
*/
func (p *Partitioner) Owner(v edge.VertexID) int {
	return Owner(v, p.cfg.Hash, p.cfg.Topology.NumNodes)
}

/*
IsLocal reports whether this node owns v.
*/
func (p *Partitioner) IsLocal(v edge.VertexID) bool {
	return p.Owner(v) == p.cfg.NodeID
}

/*
Close stops accepting, signals every sender and pull goroutine to stop,
and waits for them to exit. Close is idempotent.
*/
func (p *Partitioner) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		for _, ln := range p.listeners {
			ln.Close()
		}

		p.connsMu.Lock()
		for conn := range p.conns {
			conn.Close()
		}
		p.connsMu.Unlock()

		p.wg.Wait()
	})
}
