package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"office-service/internal/client"
	"office-service/internal/domain"
	"office-service/internal/middleware"
	"office-service/internal/response"
	"office-service/internal/service"
)

type MessageHandler struct {
	messageService service.MessageService
	storage        client.StorageClient
}

func NewMessageHandler(messageService service.MessageService, storage client.StorageClient) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		storage:        storage,
	}
}

type SendMessageRequest struct {
	ChannelID *string `json:"channelId" binding:"omitempty,uuid"`
	PeerID    *string `json:"peerId" binding:"omitempty,uuid"`
	Content   string  `json:"content"`
	FileKey   *string `json:"fileKey"`
	FileName  *string `json:"fileName"`
	FileSize  *int64  `json:"fileSize"`
}

// conversationFromRequest resolves the target: channelId for channel messages,
// peerId for DMs. Exactly one must be set.
func conversationFromRequest(c *gin.Context, userID uuid.UUID, channelID, peerID *string) (*domain.Conversation, bool) {
	if (channelID == nil) == (peerID == nil) {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Exactly one of channelId and peerId is required")
		return nil, false
	}

	if channelID != nil {
		id, err := uuid.Parse(*channelID)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid channel ID")
			return nil, false
		}
		conv := domain.ChannelConversation(id)
		return &conv, true
	}

	id, err := uuid.Parse(*peerID)
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid peer ID")
		return nil, false
	}
	conv := domain.DirectConversation(userID, id)
	return &conv, true
}

// GetMessages returns conversation history ascending by creation time. The
// response echoes the conversation key so the client can discard stale
// responses after switching conversations.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var channelID, peerID *string
	if v := c.Query("channelId"); v != "" {
		channelID = &v
	}
	if v := c.Query("peerId"); v != "" {
		peerID = &v
	}
	conv, ok := conversationFromRequest(c, userID, channelID, peerID)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var before *time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid before cursor")
			return
		}
		before = &t
	}

	messages, err := h.messageService.GetHistory(c.Request.Context(), userID, *conv, limit, before)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{
		"conversation": conv.Key(),
		"messages":     h.toMessageResponses(messages),
	})
}

// SyncMessages is the reconnect path: the newest history window merged with
// everything created since the client's last seen message, deduplicated by id.
func (h *MessageHandler) SyncMessages(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var channelID, peerID *string
	if v := c.Query("channelId"); v != "" {
		channelID = &v
	}
	if v := c.Query("peerId"); v != "" {
		peerID = &v
	}
	conv, ok := conversationFromRequest(c, userID, channelID, peerID)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var since time.Time
	if v := c.Query("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid since cursor")
			return
		}
		since = parsed
	}

	messages, err := h.messageService.SyncConversation(c.Request.Context(), userID, *conv, since, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{
		"conversation": conv.Key(),
		"messages":     h.toMessageResponses(messages),
	})
}

// SendMessage is the REST path; the websocket MESSAGE frame is the primary one.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}

	conv, ok := conversationFromRequest(c, userID, req.ChannelID, req.PeerID)
	if !ok {
		return
	}

	message, err := h.messageService.SendMessage(
		c.Request.Context(), userID, *conv,
		req.Content, req.FileKey, req.FileName, req.FileSize,
	)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	middleware.RecordMessageSent()
	response.SendSuccess(c, http.StatusCreated, h.toMessageResponse(message))
}
