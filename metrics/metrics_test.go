package metrics

import "testing"

func TestDroppedTotal(t *testing.T) {
	c := New()

	if got := c.DroppedTotal(); got != 0 {
		t.Fatalf("expected 0 dropped on a fresh Counters, got %v", got)
	}

	c.DroppedEdge.Inc()
	c.DroppedReq.Inc()
	c.DroppedReq.Inc()

	if got := c.DroppedTotal(); got != 3 {
		t.Fatalf("expected 3 dropped, got %v", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Results.Inc()

	if counterValue(b.Results) != 0 {
		t.Fatalf("counters from distinct Counters instances must not share state")
	}
}
