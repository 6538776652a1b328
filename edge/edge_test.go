package edge

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	e := New(1, "a", "b", 1.0, 2.0, "payload")

	if e.ID != 1 || e.Src != "a" || e.Dst != "b" || e.TStart != 1.0 || e.TEnd != 2.0 {
		t.Fatalf("unexpected edge: %+v", e)
	}
	if e.Tuple.(string) != "payload" {
		t.Fatalf("expected tuple to round trip, got %v", e.Tuple)
	}
}

func TestDefaultHashDeterministic(t *testing.T) {
	a := DefaultHash("vertex-1")
	b := DefaultHash("vertex-1")
	if a != b {
		t.Fatalf("DefaultHash must be deterministic for the same input")
	}

	if DefaultHash("vertex-1") == DefaultHash("vertex-2") {
		t.Fatalf("distinct vertex ids should not usually collide (flaky only on a true hash collision)")
	}
}

func TestStringIncludesEndpoints(t *testing.T) {
	e := New(7, "src", "dst", 0, 1, nil)
	s := e.String()
	if s == "" {
		t.Fatalf("expected non-empty String()")
	}
	if !strings.Contains(s, "src->dst") {
		t.Fatalf("expected String() to include both endpoints, got %q", s)
	}
}
