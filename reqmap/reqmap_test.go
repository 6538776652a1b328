package reqmap

import (
	"testing"

	"github.com/flowmatch/graphstream/edge"
)

func hash(v edge.VertexID) uint64 { return edge.DefaultHash(v) }

func TestProbeMatchesRoleAndWindow(t *testing.T) {
	m := New(8, hash)

	m.Insert(&Request{RequestID: 1, Vertex: "v1", Role: RoleSource, TLo: 0, THi: 10, Deadline: 100})

	// Wrong role: v1 as Dst should not satisfy a RoleSource request.
	e1 := edge.New(1, "other", "v1", 5, 5, nil)
	if hits := m.Probe(e1); len(hits) != 0 {
		t.Fatalf("expected no hits for wrong role, got %d", len(hits))
	}

	// Right role, outside window.
	e2 := edge.New(2, "v1", "x", 50, 50, nil)
	if hits := m.Probe(e2); len(hits) != 0 {
		t.Fatalf("expected no hits outside time window, got %d", len(hits))
	}

	// Right role, inside window.
	e3 := edge.New(3, "v1", "x", 5, 5, nil)
	hits := m.Probe(e3)
	if len(hits) != 1 || hits[0].RequestID != 1 {
		t.Fatalf("expected exactly one hit for request 1, got %+v", hits)
	}
}

func TestProbeSameEdgeMultipleRequesters(t *testing.T) {
	m := New(8, hash)

	m.Insert(&Request{RequestID: 1, Vertex: "v1", Role: RoleSource, TLo: 0, THi: 10, Requester: 1, Deadline: 100})
	m.Insert(&Request{RequestID: 2, Vertex: "v1", Role: RoleSource, TLo: 0, THi: 10, Requester: 2, Deadline: 100})

	e := edge.New(1, "v1", "x", 1, 1, nil)
	hits := m.Probe(e)
	if len(hits) != 2 {
		t.Fatalf("expected both outstanding requests to fire, got %d", len(hits))
	}
}

func TestRequestSurvivesAfterOneMatch(t *testing.T) {
	m := New(8, hash)
	m.Insert(&Request{RequestID: 1, Vertex: "v1", Role: RoleSource, TLo: 0, THi: 100, Deadline: 1000})

	m.Probe(edge.New(1, "v1", "x", 1, 1, nil))
	hits := m.Probe(edge.New(2, "v1", "y", 2, 2, nil))

	if len(hits) != 1 {
		t.Fatalf("a request should remain filed across multiple qualifying edges, got %d hits on second probe", len(hits))
	}
	if m.Len() != 1 {
		t.Fatalf("expected request still filed, Len()=%d", m.Len())
	}
}

func TestExpireBefore(t *testing.T) {
	m := New(4, hash)
	m.Insert(&Request{RequestID: 1, Vertex: "v1", Deadline: 10})
	m.Insert(&Request{RequestID: 2, Vertex: "v2", Deadline: 20})

	removed := m.ExpireBefore(15)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", m.Len())
	}
}
