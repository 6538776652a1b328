package cluster

import (
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/flowmatch/graphstream/edge"
	"github.com/flowmatch/graphstream/internal/wire"
	"github.com/flowmatch/graphstream/metrics"
)

func testTopology(numNodes int, startingPort int) Topology {
	return Topology{NumNodes: numNodes, StartingPort: startingPort, NumSockets: 2}
}

func TestPortsDistinctPerSocketAndClass(t *testing.T) {
	topo := testTopology(3, 20000)

	seen := map[int]bool{}
	for _, class := range []Class{ClassEdge, ClassRequest} {
		for target := 0; target < topo.NumNodes; target++ {
			for s := 0; s < topo.NumSockets; s++ {
				p := topo.Port(class, 0, target, s)
				if seen[p] {
					t.Fatalf("port %d reused across (class=%v target=%d socket=%d)", p, class, target, s)
				}
				seen[p] = true
			}
		}
	}
}

func TestOwnerIsDeterministicAndInRange(t *testing.T) {
	hash := func(v edge.VertexID) uint64 {
		var h uint64
		for _, b := range []byte(v) {
			h = h*31 + uint64(b)
		}
		return h
	}

	for _, v := range []edge.VertexID{"a", "b", "host-1", "host-2"} {
		o1 := Owner(v, hash, 4)
		o2 := Owner(v, hash, 4)
		if o1 != o2 {
			t.Fatalf("Owner not deterministic for %s: %d != %d", v, o1, o2)
		}
		if o1 < 0 || o1 >= 4 {
			t.Fatalf("Owner out of range for %s: %d", v, o1)
		}
	}
}

func twoNodePartitioners(t *testing.T, startingPort int) (*Partitioner, *Partitioner) {
	t.Helper()

	topo := testTopology(2, startingPort)
	hash := func(v edge.VertexID) uint64 { return uint64(len(v)) }

	p0 := New(Config{
		Topology: topo, NodeID: 0, HWM: 8, Timeout: time.Second,
		NumPullThreads: 1, Counters: metrics.New(), Hash: hash,
	})
	p1 := New(Config{
		Topology: topo, NodeID: 1, HWM: 8, Timeout: time.Second,
		NumPullThreads: 1, Counters: metrics.New(), Hash: hash,
	})

	return p0, p1
}

func TestSendEdgeDeliveredToPeer(t *testing.T) {
	p0, p1 := twoNodePartitioners(t, 21000)

	var mu sync.Mutex
	received := make([]*edge.Edge, 0)
	done := make(chan struct{}, 1)

	if err := p1.Start(func(e *edge.Edge, reply bool) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}, nil); err != nil {
		t.Fatalf("p1.Start: %v", err)
	}
	defer p1.Close()

	if err := p0.Start(nil, nil); err != nil {
		t.Fatalf("p0.Start: %v", err)
	}
	defer p0.Close()

	e := edge.New(1, "a", "b", 0, 1, nil)
	p0.SendEdge(1, e, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for pushed edge to arrive")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Src != "a" || received[0].Dst != "b" {
		t.Fatalf("unexpected received edges: %+v", received)
	}
}

func TestSendEdgeToSelfIsNoop(t *testing.T) {
	p0, _ := twoNodePartitioners(t, 21100)
	// NodeID 0 sending to peer 0 (itself) must never touch edgeSockets[0], which is nil.
	p0.SendEdge(0, edge.New(1, "a", "b", 0, 1, nil), nil)
}

func TestSendRequestBumpsCounterOnDelivery(t *testing.T) {
	p0, p1 := twoNodePartitioners(t, 21200)

	done := make(chan *wire.EdgeRequestMessage, 1)
	if err := p1.Start(nil, func(req *wire.EdgeRequestMessage) {
		done <- req
	}); err != nil {
		t.Fatalf("p1.Start: %v", err)
	}
	defer p1.Close()

	if err := p0.Start(nil, nil); err != nil {
		t.Fatalf("p0.Start: %v", err)
	}
	defer p0.Close()

	p0.SendRequest(1, &wire.EdgeRequestMessage{RequestID: 1, Vertex: "x", Requester: 0})

	select {
	case req := <-done:
		if req.Vertex != "x" {
			t.Fatalf("unexpected vertex: %s", req.Vertex)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for request to arrive")
	}

	if v := p0.cfg.Counters.RequestsSent; v == nil {
		t.Fatalf("RequestsSent counter missing")
	}

	var m dto.Metric
	if err := p0.cfg.Counters.RequestsSent.Write(&m); err != nil {
		t.Fatalf("RequestsSent.Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected RequestsSent == 1, got %v", got)
	}
}

func TestOverflowDropsRatherThanBlocks(t *testing.T) {
	topo := testTopology(2, 21300)
	hash := func(v edge.VertexID) uint64 { return uint64(len(v)) }
	counters := metrics.New()

	// hwm of 1 with no listener on the peer side: the socket's sender
	// goroutine's dial fails within the timeout, and SendEdge drops (on a
	// full queue or a failed send) instead of blocking the caller.
	p0 := New(Config{
		Topology: topo, NodeID: 0, HWM: 1, Timeout: 50 * time.Millisecond,
		NumPullThreads: 1, Counters: counters, Hash: hash,
	})
	if err := p0.Start(nil, nil); err != nil {
		t.Fatalf("p0.Start: %v", err)
	}
	defer p0.Close()

	for i := 0; i < 10; i++ {
		p0.SendEdge(1, edge.New(uint64(i), "a", "b", 0, 1, nil), nil)
	}

	// Every dial to the unstarted peer fails, and each failure bumps the
	// dropped counter from the sender goroutine asynchronously; poll
	// rather than checking once so the test does not race that goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for counters.DroppedTotal() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if counters.DroppedTotal() == 0 {
		t.Fatalf("expected at least one dropped edge once the hwm-bounded queue filled")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p0, _ := twoNodePartitioners(t, 21400)
	if err := p0.Start(nil, nil); err != nil {
		t.Fatalf("p0.Start: %v", err)
	}
	p0.Close()
	p0.Close()
}
