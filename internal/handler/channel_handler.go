package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"office-service/internal/middleware"
	"office-service/internal/response"
	"office-service/internal/service"
)

type ChannelHandler struct {
	messageService service.MessageService
}

func NewChannelHandler(messageService service.MessageService) *ChannelHandler {
	return &ChannelHandler{messageService: messageService}
}

type CreateChannelRequest struct {
	WorkspaceID  string  `json:"workspaceId" binding:"required,uuid"`
	Name         string  `json:"name" binding:"required"`
	DepartmentID *string `json:"departmentId" binding:"omitempty,uuid"`
}

// GetChannels lists the channels visible to the caller: general, cross-team
// and their own department's.
func (h *ChannelHandler) GetChannels(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspaceId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace ID")
		return
	}

	var departmentID *uuid.UUID
	if v := c.Query("departmentId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid department ID")
			return
		}
		departmentID = &id
	}

	channels, err := h.messageService.GetVisibleChannels(c.Request.Context(), workspaceID, departmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, toChannelResponses(channels))
}

func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}

	workspaceID, err := uuid.Parse(req.WorkspaceID)
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace ID")
		return
	}

	var departmentID *uuid.UUID
	if req.DepartmentID != nil {
		id, err := uuid.Parse(*req.DepartmentID)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid department ID")
			return
		}
		departmentID = &id
	}

	channel, err := h.messageService.CreateChannel(c.Request.Context(), workspaceID, userID, req.Name, departmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, toChannelResponse(channel))
}

// GetUnreadCount reports messages newer than the caller's last read mark,
// excluding their own.
func (h *ChannelHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid channel ID")
		return
	}

	count, err := h.messageService.GetUnreadCount(c.Request.Context(), userID, channelID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{"unreadCount": count})
}

func (h *ChannelHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid channel ID")
		return
	}

	if err := h.messageService.MarkRead(c.Request.Context(), userID, channelID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{"message": "Read state updated"})
}
