package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/flowmatch/graphstream/edge"
)

func TestEncodeDecodeEdgeMessage(t *testing.T) {
	var buf bytes.Buffer

	want := &Message{Edge: &EdgeMessage{
		EdgeID: 42, Src: "a", Dst: "b", TStart: 1.5, TEnd: 2.5, Tuple: []byte("payload"),
	}}

	if err := Encode(&buf, want); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Edge == nil || got.Edge.EdgeID != 42 || got.Edge.Src != edge.VertexID("a") {
		t.Fatalf("round trip mismatch: %+v", got.Edge)
	}
}

func TestEncodeDecodeEdgeRequestMessage(t *testing.T) {
	var buf bytes.Buffer

	want := &Message{Request: &EdgeRequestMessage{
		RequestID: 7, Vertex: "v", Role: RoleTarget, TLo: 0, THi: 10, Requester: 2, QueryID: 1, Slot: 1,
	}}

	if err := Encode(&buf, want); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Request == nil || got.Request.RequestID != 7 || got.Request.Role != RoleTarget {
		t.Fatalf("round trip mismatch: %+v", got.Request)
	}
}

func TestDecodeEOFOnEmptyStream(t *testing.T) {
	if _, err := Decode(bytes.NewReader(nil)); err != io.EOF {
		t.Fatalf("expected io.EOF on an empty stream, got %v", err)
	}
}

func TestMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer

	for i := uint64(0); i < 3; i++ {
		if err := Encode(&buf, &Message{Edge: &EdgeMessage{EdgeID: i}}); err != nil {
			t.Fatalf("Encode %d: %v", i, err)
		}
	}

	for i := uint64(0); i < 3; i++ {
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got.Edge.EdgeID != i {
			t.Fatalf("frame %d: expected edge id %d, got %d", i, i, got.Edge.EdgeID)
		}
	}
}
