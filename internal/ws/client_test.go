package ws

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestClient_MarkSeen_Dedup(t *testing.T) {
	client := newClient(nil, uuid.New())

	id := uuid.New().String()
	if !client.markSeen(id) {
		t.Error("first sighting must pass")
	}
	if client.markSeen(id) {
		t.Error("second sighting must be suppressed")
	}
}

func TestClient_MarkSeen_RingEvictsOldest(t *testing.T) {
	client := newClient(nil, uuid.New())

	first := "msg-0"
	client.markSeen(first)
	for i := 1; i < dedupRing; i++ {
		client.markSeen(fmt.Sprintf("msg-%d", i))
	}

	// Ring is full; the next id evicts the oldest entry
	client.markSeen("overflow")
	if !client.markSeen(first) {
		t.Error("expected evicted id to be forwardable again")
	}

	// Recent ids are still remembered
	if client.markSeen("overflow") {
		t.Error("expected recent id still suppressed")
	}
}

func TestClient_Deliver_SuppressesDuplicateMessage(t *testing.T) {
	client := newClient(nil, uuid.New())

	payload := []byte(`{"type":"MESSAGE_NEW","messageId":"abc-123"}`)

	// Same insert arriving through two rooms during a conversation switch
	if !client.deliver(payload) {
		t.Fatal("first delivery must succeed")
	}
	if !client.deliver(payload) {
		t.Fatal("duplicate is dropped silently, not treated as a slow client")
	}

	if got := len(client.send); got != 1 {
		t.Errorf("expected exactly 1 queued payload, got %d", got)
	}
}

func TestClient_Deliver_EventsWithoutIDAlwaysPass(t *testing.T) {
	client := newClient(nil, uuid.New())

	payload := []byte(`{"type":"TYPING_START","userId":"u1"}`)
	client.deliver(payload)
	client.deliver(payload)

	if got := len(client.send); got != 2 {
		t.Errorf("expected both typing events queued, got %d", got)
	}
}

func TestClient_Deliver_AfterCloseIsSwallowed(t *testing.T) {
	client := newClient(nil, uuid.New())
	client.close()

	payload := []byte(`{"type":"TYPING_START"}`)
	if !client.deliver(payload) {
		t.Error("expected delivery to a closed client to be swallowed, not reported slow")
	}
	if client.deliver(payload) == false {
		t.Error("repeated deliveries after close must stay silent")
	}
}

func TestClient_Deliver_ReportsFullBuffer(t *testing.T) {
	client := newClient(nil, uuid.New())

	payload := []byte(`{"type":"TYPING_START"}`)
	for i := 0; i < sendBuffer; i++ {
		if !client.deliver(payload) {
			t.Fatalf("delivery %d failed before the buffer was full", i)
		}
	}

	if client.deliver(payload) {
		t.Error("expected delivery to fail on a full buffer")
	}
}
