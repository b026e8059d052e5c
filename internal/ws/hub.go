package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hub tracks websocket clients by room. A room is a fanout scope: a
// conversation key, a workspace presence channel or a per-user channel. Each
// room with at least one local client holds one redis subscription, so a
// thousand clients in one channel cost a single upstream subscription.
type Hub struct {
	logger *zap.Logger
	rdb    *redis.Client

	register   chan *subscription
	unregister chan *subscription

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	subsMu sync.Mutex
	subs   map[string]*roomSub

	// observer taps every locally delivered payload; wired once at setup,
	// before any traffic.
	observer func(room string, payload []byte)

	done chan struct{}
}

type subscription struct {
	client *Client
	room   string
}

type roomSub struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		rdb:        rdb,
		register:   make(chan *subscription),
		unregister: make(chan *subscription),
		rooms:      make(map[string]map[*Client]bool),
		subs:       make(map[string]*roomSub),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			created := h.rooms[sub.room] == nil
			if created {
				h.rooms[sub.room] = make(map[*Client]bool)
			}
			h.rooms[sub.room][sub.client] = true
			h.mu.Unlock()

			if created {
				h.subscribeUpstream(sub.room)
			}

			h.logger.Debug("client joined room",
				zap.String("room", sub.room),
				zap.String("userId", sub.client.userID.String()))

		case sub := <-h.unregister:
			h.mu.Lock()
			empty := false
			if clients, ok := h.rooms[sub.room]; ok {
				if clients[sub.client] {
					delete(clients, sub.client)
					if len(clients) == 0 {
						delete(h.rooms, sub.room)
						empty = true
					}
				}
			}
			h.mu.Unlock()

			if empty {
				h.unsubscribeUpstream(sub.room)
			}

		case <-h.done:
			h.teardown()
			return
		}
	}
}

func (h *Hub) Close() {
	close(h.done)
}

// Join adds the client to a room. Joining before leaving the previous room is
// the caller's responsibility; the overlap keeps events from falling into the
// gap during a conversation switch.
func (h *Hub) Join(client *Client, room string) {
	select {
	case h.register <- &subscription{client: client, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Leave(client *Client, room string) {
	select {
	case h.unregister <- &subscription{client: client, room: room}:
	case <-h.done:
	}
}

// SetObserver registers a tap on locally delivered payloads. Must be called
// during setup, before Run processes any traffic.
func (h *Hub) SetObserver(fn func(room string, payload []byte)) {
	h.observer = fn
}

// DeliverLocal pushes a payload to every local client in the room. Slow
// clients are dropped rather than allowed to stall the fanout.
func (h *Hub) DeliverLocal(room string, payload []byte) {
	if h.observer != nil {
		h.observer(room, payload)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.deliver(payload) {
			h.logger.Warn("dropping slow websocket client",
				zap.String("room", room),
				zap.String("userId", client.userID.String()))
			h.dropClient(client)
		}
	}
}

// dropClient removes the client from every room before closing its queue, so
// later deliveries never touch a closed client.
func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	var emptied []string
	for room, clients := range h.rooms {
		if clients[client] {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
				emptied = append(emptied, room)
			}
		}
	}
	h.mu.Unlock()

	client.close()
	for _, room := range emptied {
		h.unsubscribeUpstream(room)
	}
}

// RoomSize reports the number of local clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) subscribeUpstream(room string) {
	if h.rdb == nil {
		return
	}

	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	if _, ok := h.subs[room]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := h.rdb.Subscribe(ctx, room)
	h.subs[room] = &roomSub{pubsub: pubsub, cancel: cancel}

	go h.pumpUpstream(ctx, room, pubsub)
}

func (h *Hub) unsubscribeUpstream(room string) {
	if h.rdb == nil {
		return
	}

	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	sub, ok := h.subs[room]
	if !ok {
		return
	}
	delete(h.subs, room)
	sub.cancel()
	sub.pubsub.Close()
}

func (h *Hub) pumpUpstream(ctx context.Context, room string, pubsub *redis.PubSub) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered in upstream pump",
				zap.Any("panic", r),
				zap.String("room", room))
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.DeliverLocal(room, []byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) teardown() {
	h.mu.Lock()
	for room, clients := range h.rooms {
		for client := range clients {
			client.close()
		}
		delete(h.rooms, room)
	}
	h.mu.Unlock()

	h.subsMu.Lock()
	for room, sub := range h.subs {
		sub.cancel()
		sub.pubsub.Close()
		delete(h.subs, room)
	}
	h.subsMu.Unlock()
}
