package handler

import (
	"time"

	"office-service/internal/domain"
)

// MessageResponse is the message API shape. FileURL is resolved from the
// stored object key at response time.
type MessageResponse struct {
	MessageID   string    `json:"messageId"`
	SenderID    string    `json:"senderId"`
	ChannelID   *string   `json:"channelId,omitempty"`
	RecipientID *string   `json:"recipientId,omitempty"`
	Content     string    `json:"content"`
	FileURL     *string   `json:"fileUrl,omitempty"`
	FileName    *string   `json:"fileName,omitempty"`
	FileSize    *int64    `json:"fileSize,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *MessageHandler) toMessageResponse(msg *domain.ChatMessage) MessageResponse {
	resp := MessageResponse{
		MessageID: msg.MessageID.String(),
		SenderID:  msg.SenderID.String(),
		Content:   msg.Content,
		FileName:  msg.FileName,
		FileSize:  msg.FileSize,
		CreatedAt: msg.CreatedAt,
	}
	if msg.ChannelID != nil {
		id := msg.ChannelID.String()
		resp.ChannelID = &id
	}
	if msg.RecipientID != nil {
		id := msg.RecipientID.String()
		resp.RecipientID = &id
	}
	if msg.FileKey != nil && h.storage != nil {
		url := h.storage.PublicURL(*msg.FileKey)
		resp.FileURL = &url
	}
	return resp
}

func (h *MessageHandler) toMessageResponses(messages []domain.ChatMessage) []MessageResponse {
	responses := make([]MessageResponse, len(messages))
	for i := range messages {
		responses[i] = h.toMessageResponse(&messages[i])
	}
	return responses
}

type ChannelResponse struct {
	ChannelID    string    `json:"channelId"`
	WorkspaceID  string    `json:"workspaceId"`
	Name         string    `json:"name"`
	IsGeneral    bool      `json:"isGeneral"`
	DepartmentID *string   `json:"departmentId,omitempty"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toChannelResponse(channel *domain.ChatChannel) ChannelResponse {
	resp := ChannelResponse{
		ChannelID:   channel.ChannelID.String(),
		WorkspaceID: channel.WorkspaceID.String(),
		Name:        channel.Name,
		IsGeneral:   channel.IsGeneral,
		CreatedBy:   channel.CreatedBy.String(),
		CreatedAt:   channel.CreatedAt,
	}
	if channel.DepartmentID != nil {
		id := channel.DepartmentID.String()
		resp.DepartmentID = &id
	}
	return resp
}

func toChannelResponses(channels []domain.ChatChannel) []ChannelResponse {
	responses := make([]ChannelResponse, len(channels))
	for i := range channels {
		responses[i] = toChannelResponse(&channels[i])
	}
	return responses
}

type GameResponse struct {
	GameID    string           `json:"gameId"`
	Player1ID string           `json:"player1Id"`
	Player2ID *string          `json:"player2Id,omitempty"`
	Status    string           `json:"status"`
	VsBot     bool             `json:"vsBot"`
	State     domain.GameState `json:"state"`
	WinnerID  *string          `json:"winnerId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

func toGameResponse(game *domain.ChessGame) (GameResponse, error) {
	state, err := domain.DecodeGameState(game.GameState)
	if err != nil {
		return GameResponse{}, err
	}

	resp := GameResponse{
		GameID:    game.GameID.String(),
		Player1ID: game.Player1ID.String(),
		Status:    string(game.Status),
		VsBot:     game.VsBot,
		State:     state,
		CreatedAt: game.CreatedAt,
	}
	if game.Player2ID != nil {
		id := game.Player2ID.String()
		resp.Player2ID = &id
	}
	if game.WinnerID != nil {
		id := game.WinnerID.String()
		resp.WinnerID = &id
	}
	return resp, nil
}
