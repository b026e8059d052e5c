package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

// waitForRoomSize polls until the hub processed the pending joins/leaves.
func waitForRoomSize(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.RoomSize(room) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d (got %d)", room, want, hub.RoomSize(room))
}

func TestHub_JoinDeliverLeave(t *testing.T) {
	hub := newTestHub(t)

	room := "conv:channel:general"
	a := newClient(nil, uuid.New())
	b := newClient(nil, uuid.New())

	hub.Join(a, room)
	hub.Join(b, room)
	waitForRoomSize(t, hub, room, 2)

	payload := []byte(`{"type":"TYPING_START"}`)
	hub.DeliverLocal(room, payload)

	if len(a.send) != 1 || len(b.send) != 1 {
		t.Errorf("expected payload delivered to both clients, got %d and %d", len(a.send), len(b.send))
	}

	hub.Leave(b, room)
	waitForRoomSize(t, hub, room, 1)

	hub.DeliverLocal(room, payload)
	if len(a.send) != 2 {
		t.Errorf("expected remaining client to keep receiving, got %d", len(a.send))
	}
	if len(b.send) != 1 {
		t.Errorf("expected departed client to receive nothing more, got %d", len(b.send))
	}
}

func TestHub_DeliverToUnknownRoomIsNoop(t *testing.T) {
	hub := newTestHub(t)
	hub.DeliverLocal("conv:channel:ghost", []byte(`{"type":"TYPING_START"}`))
}

func TestHub_ClientInTwoRoomsDuringSwitch(t *testing.T) {
	hub := newTestHub(t)

	oldRoom := "conv:dm:a:b"
	newRoom := "conv:channel:general"
	client := newClient(nil, uuid.New())

	// Join-before-leave: both rooms reach the client for a moment
	hub.Join(client, oldRoom)
	waitForRoomSize(t, hub, oldRoom, 1)
	hub.Join(client, newRoom)
	waitForRoomSize(t, hub, newRoom, 1)

	// The same message event through both rooms lands once
	payload := []byte(`{"type":"MESSAGE_NEW","messageId":"m-1"}`)
	hub.DeliverLocal(oldRoom, payload)
	hub.DeliverLocal(newRoom, payload)

	if len(client.send) != 1 {
		t.Errorf("expected the duplicate suppressed, got %d payloads", len(client.send))
	}

	hub.Leave(client, oldRoom)
	waitForRoomSize(t, hub, oldRoom, 0)
}

func TestHub_SlowClientClosed(t *testing.T) {
	hub := newTestHub(t)

	room := "conv:channel:general"
	client := newClient(nil, uuid.New())
	hub.Join(client, room)
	waitForRoomSize(t, hub, room, 1)

	payload := []byte(`{"type":"TYPING_START"}`)
	for i := 0; i <= sendBuffer; i++ {
		hub.DeliverLocal(room, payload)
	}

	// The overflowing delivery closed the client's queue
	drained := 0
	for range client.send {
		drained++
		if drained > sendBuffer {
			t.Fatal("send channel was never closed")
		}
	}
	if drained != sendBuffer {
		t.Errorf("expected %d buffered payloads, got %d", sendBuffer, drained)
	}
}

func TestHub_DroppedClientLeavesEveryRoom(t *testing.T) {
	hub := newTestHub(t)

	roomA := "conv:channel:general"
	roomB := "presence:workspace:w1"
	slow := newClient(nil, uuid.New())
	healthy := newClient(nil, uuid.New())

	hub.Join(slow, roomA)
	hub.Join(slow, roomB)
	hub.Join(healthy, roomA)
	waitForRoomSize(t, hub, roomA, 2)
	waitForRoomSize(t, hub, roomB, 1)

	// Fill the slow client's queue so the next fanout overflows it
	payload := []byte(`{"type":"TYPING_START"}`)
	for i := 0; i < sendBuffer; i++ {
		slow.deliver(payload)
	}
	hub.DeliverLocal(roomA, payload)

	// The drop detached the slow client from both rooms
	if got := hub.RoomSize(roomA); got != 1 {
		t.Errorf("expected only the healthy client in %s, got %d", roomA, got)
	}
	if got := hub.RoomSize(roomB); got != 0 {
		t.Errorf("expected %s emptied, got %d clients", roomB, got)
	}

	// Further fanout to either room must not touch the closed client
	hub.DeliverLocal(roomA, payload)
	hub.DeliverLocal(roomB, payload)
}

func TestHub_ObserverSeesDeliveredPayloads(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	var rooms []string
	hub.SetObserver(func(room string, payload []byte) {
		rooms = append(rooms, room)
	})
	go hub.Run()
	t.Cleanup(hub.Close)

	room := "conv:channel:general"
	client := newClient(nil, uuid.New())
	hub.Join(client, room)
	waitForRoomSize(t, hub, room, 1)

	hub.DeliverLocal(room, []byte(`{"type":"TYPING_START"}`))
	if len(rooms) != 1 || rooms[0] != room {
		t.Errorf("expected the observer called once for %s, got %v", room, rooms)
	}
}
