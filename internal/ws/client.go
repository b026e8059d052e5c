package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	sendBuffer = 256
	dedupRing  = 256
)

// Client is one websocket connection. The dedup ring remembers recently
// forwarded message ids: during a conversation switch the client briefly sits
// in two rooms, and the same insert event can arrive through both.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID

	closeOnce sync.Once

	dedupMu  sync.Mutex
	closed   bool
	seen     map[string]bool
	seenRing [dedupRing]string
	seenPos  int
}

func newClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		seen:   make(map[string]bool, dedupRing),
	}
}

// close shuts the send queue. Serialized with deliver through dedupMu so a
// racing delivery sees the closed flag instead of a closed channel.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.dedupMu.Lock()
		c.closed = true
		close(c.send)
		c.dedupMu.Unlock()
	})
}

// deliver enqueues a payload, suppressing duplicate message events by id.
// A closed client swallows the payload without reporting backpressure.
func (c *Client) deliver(payload []byte) bool {
	var envelope struct {
		Type      string `json:"type"`
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.MessageID != "" {
		if !c.markSeen(envelope.MessageID) {
			return true
		}
	}

	c.dedupMu.Lock()
	defer c.dedupMu.Unlock()
	if c.closed {
		return true
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// markSeen records a message id, returning false if it was already seen. The
// ring evicts the oldest entry once full.
func (c *Client) markSeen(messageID string) bool {
	c.dedupMu.Lock()
	defer c.dedupMu.Unlock()

	if c.seen[messageID] {
		return false
	}

	if old := c.seenRing[c.seenPos]; old != "" {
		delete(c.seen, old)
	}
	c.seenRing[c.seenPos] = messageID
	c.seenPos = (c.seenPos + 1) % dedupRing
	c.seen[messageID] = true
	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
