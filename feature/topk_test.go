package feature

import (
	"testing"

	"github.com/flowmatch/graphstream/edge"
)

func TestTopKTracksHotSet(t *testing.T) {
	tk := NewTopK(2)

	for i := 0; i < 10; i++ {
		tk.Observe("popular-a")
	}
	for i := 0; i < 8; i++ {
		tk.Observe("popular-b")
	}
	for i := 0; i < 2; i++ {
		tk.Observe("rare")
	}

	if !tk.Contains("", "popular-a") || !tk.Contains("", "popular-b") {
		t.Fatalf("expected the two most-visited vertices to be hot")
	}
	if tk.Contains("", "rare") {
		t.Fatalf("rare vertex should not be in the top-2 hot set")
	}
}

func TestTopKUnknownForUnseenVertex(t *testing.T) {
	tk := NewTopK(3)
	if got := tk.Membership("", "never-seen"); got != Unknown {
		t.Fatalf("expected Unknown for an unobserved vertex, got %v", got)
	}
}

func TestTopKReplacesColdEntry(t *testing.T) {
	tk := NewTopK(1)

	tk.Observe("a")
	if !tk.Contains("", "a") {
		t.Fatalf("a should be hot after its first observation with k=1")
	}

	for i := 0; i < 5; i++ {
		tk.Observe("b")
	}

	if tk.Contains("", "a") {
		t.Fatalf("a should have been evicted once b overtook it with k=1")
	}
	if !tk.Contains("", "b") {
		t.Fatalf("b should now be the sole hot vertex")
	}
}

func TestStaticLookup(t *testing.T) {
	s := Static{"topk": {edge.VertexID("hot"): true}}

	if !s.Contains("topk", "hot") {
		t.Fatalf("expected hot to be contained")
	}
	if s.Contains("topk", "cold") {
		t.Fatalf("expected cold to not be contained")
	}
	if s.Membership("missing-feature", "hot") != Unknown {
		t.Fatalf("expected Unknown for an unregistered feature id")
	}
}
