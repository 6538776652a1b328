package csindex

import (
	"testing"

	"github.com/flowmatch/graphstream/edge"
)

func hash(v edge.VertexID) uint64 { return edge.DefaultHash(v) }

func TestInsertAndScan(t *testing.T) {
	idx := New(4, hash)

	e1 := edge.New(1, "a", "b", 0, 0, nil)
	e2 := edge.New(2, "a", "c", 1, 1, nil)
	idx.Insert("a", e1)
	idx.Insert("a", e2)

	var seen []uint64
	idx.Scan("a", func(e *edge.Edge) bool {
		seen = append(seen, e.ID)
		return true
	})

	if len(seen) != 2 {
		t.Fatalf("expected 2 edges under vertex a, got %d", len(seen))
	}
}

func TestScanStopsEarly(t *testing.T) {
	idx := New(4, hash)
	idx.Insert("a", edge.New(1, "a", "b", 0, 0, nil))
	idx.Insert("a", edge.New(2, "a", "b", 0, 0, nil))

	count := 0
	idx.Scan("a", func(e *edge.Edge) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("expected Scan to stop after the first false return, got %d calls", count)
	}
}

func TestExpireBefore(t *testing.T) {
	idx := New(4, hash)
	idx.Insert("a", edge.New(1, "a", "b", 0, 5, nil))
	idx.Insert("a", edge.New(2, "a", "b", 10, 20, nil))

	removed := idx.ExpireBefore(10)
	if removed != 1 {
		t.Fatalf("expected 1 expired edge, got %d", removed)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 remaining edge, got %d", idx.Len())
	}
}

func TestDualInsertsBothHalves(t *testing.T) {
	d := NewDual(4, hash)
	e := edge.New(1, "src", "dst", 0, 0, nil)
	d.Insert(e)

	srcHits := 0
	d.CSR.Scan("src", func(e *edge.Edge) bool { srcHits++; return true })
	dstHits := 0
	d.CSC.Scan("dst", func(e *edge.Edge) bool { dstHits++; return true })

	if srcHits != 1 || dstHits != 1 {
		t.Fatalf("expected the edge to be indexed by source in CSR and by target in CSC, got src=%d dst=%d", srcHits, dstHits)
	}

	// CSR must not index by target, and CSC must not index by source.
	crossHits := 0
	d.CSR.Scan("dst", func(e *edge.Edge) bool { crossHits++; return true })
	if crossHits != 0 {
		t.Fatalf("CSR must not be reachable by target vertex, got %d hits", crossHits)
	}
}

func TestDualExpireBeforeCountsBothHalves(t *testing.T) {
	d := NewDual(4, hash)
	d.Insert(edge.New(1, "src", "dst", 0, 1, nil))

	removed := d.ExpireBefore(10)
	if removed != 2 {
		t.Fatalf("expected 2 references removed (one per half), got %d", removed)
	}
}

func TestBucketCollisionHandledByLinearScan(t *testing.T) {
	idx := New(1, hash) // force every vertex into the same bucket

	idx.Insert("a", edge.New(1, "a", "x", 0, 0, nil))
	idx.Insert("b", edge.New(2, "b", "x", 0, 0, nil))

	aHits, bHits := 0, 0
	idx.Scan("a", func(e *edge.Edge) bool { aHits++; return true })
	idx.Scan("b", func(e *edge.Edge) bool { bHits++; return true })

	if aHits != 1 || bHits != 1 {
		t.Fatalf("colliding vertices must still resolve correctly by exact equality, got a=%d b=%d", aHits, bHits)
	}
}

func TestNeighborsFiltersByRole(t *testing.T) {
	d := NewDual(4, hash)
	d.Insert(edge.New(1, "v", "other", 0, 0, nil))

	srcHits := 0
	d.Neighbors("v", 0, 100, RoleSource, func(e *edge.Edge) bool { srcHits++; return true })
	if srcHits != 1 {
		t.Fatalf("expected v to be reachable as a source via RoleSource, got %d hits", srcHits)
	}

	dstHits := 0
	d.Neighbors("v", 0, 100, RoleTarget, func(e *edge.Edge) bool { dstHits++; return true })
	if dstHits != 0 {
		t.Fatalf("v was never a target, RoleTarget must not find it, got %d hits", dstHits)
	}
}

func TestNeighborsFiltersByTimeWindow(t *testing.T) {
	d := NewDual(4, hash)
	d.Insert(edge.New(1, "v", "x", 5, 20, nil))
	d.Insert(edge.New(2, "v", "x", 50, 60, nil))

	var starts []float64
	d.Neighbors("v", 0, 10, RoleSource, func(e *edge.Edge) bool {
		starts = append(starts, e.TStart)
		return true
	})

	if len(starts) != 1 || starts[0] != 5 {
		t.Fatalf("expected only the edge with TStart in [0,10], got %v", starts)
	}
}

func TestNeighborsPrunesExpiredEntries(t *testing.T) {
	d := NewDual(4, hash)
	d.Insert(edge.New(1, "v", "x", 0, 1, nil))
	d.Insert(edge.New(2, "v", "x", 10, 20, nil))

	d.Neighbors("v", 15, 100, RoleSource, func(e *edge.Edge) bool { return true })

	if d.CSR.Len() != 1 {
		t.Fatalf("expected Neighbors to prune the entry expired relative to timeLo, got %d remaining", d.CSR.Len())
	}
}
