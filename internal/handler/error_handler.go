package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"office-service/internal/response"
)

// handleServiceError maps an AppError code to an HTTP status; anything else
// is a 500.
func handleServiceError(c *gin.Context, err error) {
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case response.ErrCodeNotFound:
		status = http.StatusNotFound
	case response.ErrCodeValidation:
		status = http.StatusBadRequest
	case response.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case response.ErrCodeForbidden:
		status = http.StatusForbidden
	case response.ErrCodeConflict, response.ErrCodeAlreadyExists:
		status = http.StatusConflict
	}

	response.SendError(c, status, appErr.Code, appErr.Message)
}
