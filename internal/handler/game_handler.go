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

type GameHandler struct {
	matchService *service.MatchService
}

func NewGameHandler(matchService *service.MatchService) *GameHandler {
	return &GameHandler{matchService: matchService}
}

type InviteRequest struct {
	OpponentID string `json:"opponentId" binding:"required,uuid"`
}

type MoveRequest struct {
	Move string `json:"move" binding:"required"`
}

// FindMatch blocks until an opponent is found or the bot fallback kicks in.
// Cancelling the request aborts the search and removes the queue entry.
func (h *GameHandler) FindMatch(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	game, err := h.matchService.FindRandomMatch(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	opponent := "human"
	if game.VsBot {
		opponent = "bot"
	}
	middleware.RecordMatchMade(opponent)

	h.sendGame(c, http.StatusOK, game)
}

func (h *GameHandler) SendInvite(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}

	opponentID, err := uuid.Parse(req.OpponentID)
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid opponent ID")
		return
	}

	game, err := h.matchService.SendInvite(c.Request.Context(), userID, opponentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	h.sendGame(c, http.StatusCreated, game)
}

func (h *GameHandler) AcceptInvite(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	gameID, err := uuid.Parse(c.Param("gameId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid game ID")
		return
	}

	game, err := h.matchService.AcceptInvite(c.Request.Context(), gameID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	middleware.RecordMatchMade("human")
	h.sendGame(c, http.StatusOK, game)
}

func (h *GameHandler) DeclineInvite(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	gameID, err := uuid.Parse(c.Param("gameId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid game ID")
		return
	}

	if err := h.matchService.DeclineInvite(c.Request.Context(), gameID, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, gin.H{"message": "Invite declined"})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	gameID, err := uuid.Parse(c.Param("gameId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid game ID")
		return
	}

	game, err := h.matchService.GetGame(c.Request.Context(), gameID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	h.sendGame(c, http.StatusOK, game)
}

// Move applies one move in UCI form. In bot games the response already
// includes the bot's reply.
func (h *GameHandler) Move(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	gameID, err := uuid.Parse(c.Param("gameId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid game ID")
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}

	game, err := h.matchService.Move(c.Request.Context(), gameID, userID, req.Move)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if game.Status == domain.GameStatusCompleted {
		middleware.RecordGameCompleted()
	}

	h.sendGame(c, http.StatusOK, game)
}

func (h *GameHandler) sendGame(c *gin.Context, status int, game *domain.ChessGame) {
	resp, err := toGameResponse(game)
	if err != nil {
		response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, "Corrupt game state")
		return
	}
	response.SendSuccess(c, status, resp)
}
