package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"office-service/internal/domain"
	"office-service/internal/middleware"
	"office-service/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame is the client-to-server websocket message.
type Frame struct {
	Type      string  `json:"type"`
	ChannelID string  `json:"channelId,omitempty"`
	PeerID    string  `json:"peerId,omitempty"`
	Content   string  `json:"content,omitempty"`
	FileKey   *string `json:"fileKey,omitempty"`
	FileName  *string `json:"fileName,omitempty"`
	FileSize  *int64  `json:"fileSize,omitempty"`
}

type Handler struct {
	logger          *zap.Logger
	validator       middleware.TokenValidator
	hub             *Hub
	presenceService *service.PresenceService
	messageService  service.MessageService
	typingService   *service.TypingService
}

func NewHandler(
	logger *zap.Logger,
	validator middleware.TokenValidator,
	hub *Hub,
	presenceService *service.PresenceService,
	messageService service.MessageService,
	typingService *service.TypingService,
) *Handler {
	return &Handler{
		logger:          logger,
		validator:       validator,
		hub:             hub,
		presenceService: presenceService,
		messageService:  messageService,
		typingService:   typingService,
	}
}

func (h *Handler) authenticate(c *gin.Context) (uuid.UUID, bool) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return uuid.Nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	userID, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return uuid.Nil, false
	}
	return userID, true
}

// HandlePresence is the workspace presence socket. Connecting counts as
// joining the office; the first frame the client receives is a full snapshot
// so it never renders from an empty member list.
func (h *Handler) HandlePresence(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid workspace ID"})
		return
	}

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade presence connection", zap.Error(err))
		return
	}

	client := newClient(conn, userID)
	presenceRoom := service.PresenceChannel(workspaceID.String())
	userRoom := service.UserChannel(userID.String())

	h.hub.Join(client, presenceRoom)
	h.hub.Join(client, userRoom)
	h.presenceService.HandleJoin(c.Request.Context(), userID, workspaceID)
	middleware.RecordWebSocketConnection()
	middleware.SetPresenceJoined(float64(len(h.presenceService.JoinedUsers(workspaceID))))

	h.sendSync(c.Request.Context(), client, workspaceID)

	h.logger.Info("presence socket connected",
		zap.String("userId", userID.String()),
		zap.String("workspaceId", workspaceID.String()))

	go client.writePump()
	h.presenceReadLoop(client, userID, workspaceID, presenceRoom, userRoom)
}

// sendSync pushes the merged presence snapshot, flagged degraded when the
// fanout has been failing so the client treats the data as stale rather than
// authoritative.
func (h *Handler) sendSync(ctx context.Context, client *Client, workspaceID uuid.UUID) {
	members, err := h.presenceService.WorkspacePresence(ctx, workspaceID)
	if err != nil {
		h.logger.Warn("failed to build presence snapshot", zap.Error(err))
		members = []domain.MemberPresence{}
	}

	payload, err := json.Marshal(service.Event{
		Type: "SYNC",
		Payload: map[string]interface{}{
			"members":  members,
			"degraded": h.presenceService.Degraded(),
		},
	})
	if err != nil {
		return
	}
	client.deliver(payload)
}

func (h *Handler) presenceReadLoop(client *Client, userID, workspaceID uuid.UUID, rooms ...string) {
	defer func() {
		for _, room := range rooms {
			h.hub.Leave(client, room)
		}
		client.close()
		client.conn.Close()
		h.presenceService.HandleLeave(context.Background(), userID, workspaceID)
		middleware.RecordWebSocketDisconnection()
		middleware.SetPresenceJoined(float64(len(h.presenceService.JoinedUsers(workspaceID))))

		h.logger.Info("presence socket disconnected",
			zap.String("userId", userID.String()))
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type == "SYNC" {
			h.sendSync(context.Background(), client, workspaceID)
		}
	}
}

// HandleChat is the conversation socket. One socket serves every conversation
// the user opens; SUBSCRIBE frames switch which one is live.
func (h *Handler) HandleChat(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade chat connection", zap.Error(err))
		return
	}

	client := newClient(conn, userID)
	middleware.RecordWebSocketConnection()

	go client.writePump()
	h.chatReadLoop(client, userID)
}

func (h *Handler) chatReadLoop(client *Client, userID uuid.UUID) {
	var conv *domain.Conversation
	var room string

	defer func() {
		if conv != nil {
			h.typingService.Stop(context.Background(), conv.Key(), userID)
			h.typingService.DetachConversation(conv.Key(), userID)
			h.hub.Leave(client, room)
		}
		client.close()
		client.conn.Close()
		middleware.RecordWebSocketDisconnection()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket error", zap.Error(err))
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.logger.Warn("failed to parse frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case "SUBSCRIBE":
			next, err := h.resolveConversation(&frame, userID)
			if err != nil {
				h.sendError(client, err.Error())
				continue
			}
			// Join the new room before leaving the old one so nothing
			// published during the switch is missed.
			nextRoom := service.ConversationChannel(next.Key())
			h.hub.Join(client, nextRoom)
			if conv != nil {
				h.typingService.Stop(context.Background(), conv.Key(), userID)
				h.typingService.DetachConversation(conv.Key(), userID)
				h.hub.Leave(client, room)
			}
			conv, room = next, nextRoom
			h.sendTypers(client, next.Key())

		case "MESSAGE":
			if conv == nil {
				h.sendError(client, "no conversation subscribed")
				continue
			}
			h.typingService.Stop(context.Background(), conv.Key(), userID)
			message, err := h.messageService.SendMessage(
				context.Background(), userID, *conv,
				frame.Content, frame.FileKey, frame.FileName, frame.FileSize,
			)
			if err != nil {
				h.sendError(client, err.Error())
				continue
			}
			middleware.RecordMessageSent()
			h.sendAck(client, message)

		case "TYPING":
			if conv != nil {
				h.typingService.Notify(context.Background(), conv.Key(), userID)
			}

		case "TYPING_STOP":
			if conv != nil {
				h.typingService.Stop(context.Background(), conv.Key(), userID)
			}

		case "READ":
			channelID, err := uuid.Parse(frame.ChannelID)
			if err != nil {
				h.sendError(client, "invalid channel id")
				continue
			}
			if err := h.messageService.MarkRead(context.Background(), userID, channelID); err != nil {
				h.logger.Warn("failed to mark read", zap.Error(err))
			}

		default:
			h.logger.Warn("unknown frame type", zap.String("type", frame.Type))
		}
	}
}

func (h *Handler) resolveConversation(frame *Frame, userID uuid.UUID) (*domain.Conversation, error) {
	if frame.ChannelID != "" {
		channelID, err := uuid.Parse(frame.ChannelID)
		if err != nil {
			return nil, err
		}
		conv := domain.ChannelConversation(channelID)
		return &conv, nil
	}

	peerID, err := uuid.Parse(frame.PeerID)
	if err != nil {
		return nil, err
	}
	conv := domain.DirectConversation(userID, peerID)
	return &conv, nil
}

// sendAck echoes the persisted row back to the sender. The client replaces
// its optimistic copy by message id.
func (h *Handler) sendAck(client *Client, message *domain.ChatMessage) {
	payload, err := json.Marshal(service.Event{
		Type:      "MESSAGE_ACK",
		MessageID: message.MessageID.String(),
		UserID:    message.SenderID.String(),
		Payload: map[string]interface{}{
			"content":   message.Content,
			"createdAt": message.CreatedAt,
		},
	})
	if err != nil {
		return
	}
	client.deliver(payload)
}

// sendTypers snapshots who is typing in the conversation the client just
// opened, covering starts broadcast before the subscription existed.
func (h *Handler) sendTypers(client *Client, convKey string) {
	typers := h.typingService.ActiveTypers(convKey)
	userIDs := make([]string, 0, len(typers))
	for _, id := range typers {
		userIDs = append(userIDs, id.String())
	}

	payload, err := json.Marshal(service.Event{
		Type: "TYPING_SNAPSHOT",
		Payload: map[string]interface{}{
			"conversation": convKey,
			"userIds":      userIDs,
		},
	})
	if err != nil {
		return
	}
	client.deliver(payload)
}

func (h *Handler) sendError(client *Client, detail string) {
	payload, err := json.Marshal(service.Event{
		Type:    "ERROR",
		Payload: map[string]interface{}{"message": detail},
	})
	if err != nil {
		return
	}
	client.deliver(payload)
}
