package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"office-service/internal/client"
	"office-service/internal/middleware"
	"office-service/internal/response"
	"office-service/internal/service"
)

// FileHandler hands out presigned upload URLs for chat attachments and
// resolves file messages to download URLs. The client uploads directly to
// blob storage and then sends a message carrying the returned key.
type FileHandler struct {
	storage        client.StorageClient
	messageService service.MessageService
}

func NewFileHandler(storage client.StorageClient, messageService service.MessageService) *FileHandler {
	return &FileHandler{storage: storage, messageService: messageService}
}

type PresignUploadRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required,uuid"`
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

func (h *FileHandler) PresignUpload(c *gin.Context) {
	if _, ok := middleware.GetUserID(c); !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}
	if h.storage == nil {
		response.SendError(c, http.StatusServiceUnavailable, response.ErrCodeInternal, "File storage is not configured")
		return
	}

	var req PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}
	if _, err := uuid.Parse(req.WorkspaceID); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid workspace ID")
		return
	}

	key := h.storage.GenerateKey(req.WorkspaceID, req.FileName)
	uploadURL, err := h.storage.PresignUpload(c.Request.Context(), key, req.ContentType)
	if err != nil {
		response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, "Failed to presign upload")
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{
		"uploadUrl": uploadURL,
		"fileKey":   key,
		"fileUrl":   h.storage.PublicURL(key),
	})
}

// GetAttachment resolves a file message to its download URL.
func (h *FileHandler) GetAttachment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}
	if h.storage == nil {
		response.SendError(c, http.StatusServiceUnavailable, response.ErrCodeInternal, "File storage is not configured")
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid message ID")
		return
	}

	message, err := h.messageService.GetAttachment(c.Request.Context(), userID, messageID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{
		"fileUrl":  h.storage.PublicURL(*message.FileKey),
		"fileName": message.FileName,
		"fileSize": message.FileSize,
	})
}
