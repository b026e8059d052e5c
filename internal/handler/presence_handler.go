package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"office-service/internal/domain"
	"office-service/internal/middleware"
	"office-service/internal/response"
	"office-service/internal/service"
)

type PresenceHandler struct {
	presenceService *service.PresenceService
}

func NewPresenceHandler(presenceService *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

type SetStatusRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required,uuid"`
	Status      string `json:"status" binding:"required"`
}

// SetStatus updates the caller's sticky status. Closing the tab never calls
// this; the status persists until the user changes it.
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}

	workspaceID, err := uuid.Parse(req.WorkspaceID)
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace ID")
		return
	}

	if err := h.presenceService.SetStatus(c.Request.Context(), userID, workspaceID, domain.PresenceStatus(req.Status)); err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{"status": req.Status})
}

// GetWorkspacePresence returns the merged member view: sticky status plus the
// live joined flag, with the conjunction precomputed as "available".
func (h *PresenceHandler) GetWorkspacePresence(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace ID")
		return
	}

	members, err := h.presenceService.WorkspacePresence(c.Request.Context(), workspaceID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{
		"members":  members,
		"degraded": h.presenceService.Degraded(),
	})
}

// GetMyStatus returns the caller's stored presence row.
func (h *PresenceHandler) GetMyStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	presence, err := h.presenceService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, presence)
}
