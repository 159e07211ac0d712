package rooms

import (
	"errors"
	"testing"
)

type failSink struct{}

func (failSink) Emit(event string, args ...any) error {
	return errors.New("peer gone")
}

func TestBroadcast_FailedPeerDoesNotStopOthers(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry)

	good1 := &recordSink{}
	good2 := &recordSink{}
	registry.Join("s1", "r1", good1)
	registry.Join("s2", "r1", failSink{})
	registry.Join("s3", "r1", good2)

	b.Broadcast("r1", EventClear, "")

	if got := len(good1.named(EventClear)); got != 1 {
		t.Errorf("First healthy peer received %d events, want 1", got)
	}
	if got := len(good2.named(EventClear)); got != 1 {
		t.Errorf("Second healthy peer received %d events, want 1", got)
	}
}

func TestBroadcast_EmptyRoom(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry)

	// Must not panic or deliver anywhere.
	b.Broadcast("empty", EventDraw, "", 42)
}

func TestBroadcast_QueriesMembershipAtSendTime(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry)

	stayer := &recordSink{}
	leaver := &recordSink{}
	registry.Join("s1", "r1", stayer)
	registry.Join("s2", "r1", leaver)
	registry.Leave("s2")

	b.Broadcast("r1", EventDraw, "")

	if got := len(leaver.named(EventDraw)); got != 0 {
		t.Errorf("Departed session received %d events, want 0", got)
	}
	if got := len(stayer.named(EventDraw)); got != 1 {
		t.Errorf("Remaining session received %d events, want 1", got)
	}
}
