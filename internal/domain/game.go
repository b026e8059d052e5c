package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GameStatus string

const (
	GameStatusWaiting   GameStatus = "WAITING"
	GameStatusPending   GameStatus = "PENDING"
	GameStatusActive    GameStatus = "ACTIVE"
	GameStatusCompleted GameStatus = "COMPLETED"
	GameStatusDeclined  GameStatus = "DECLINED"
)

// startFEN is the standard chess starting position.
const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ChessGame is a matchmaking record. A WAITING game has Player2ID nil until an
// opponent claims it; claim and attach happen in one update. Status moves
// forward only, except PENDING -> DECLINED.
type ChessGame struct {
	GameID    uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"gameId"`
	Player1ID uuid.UUID      `gorm:"type:uuid;not null;index" json:"player1Id"`
	Player2ID *uuid.UUID     `gorm:"type:uuid;index" json:"player2Id,omitempty"`
	Status    GameStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	VsBot     bool           `gorm:"default:false" json:"vsBot"`
	GameState datatypes.JSON `gorm:"type:jsonb" json:"gameState"`
	WinnerID  *uuid.UUID     `gorm:"type:uuid" json:"winnerId,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (ChessGame) TableName() string {
	return "chess_games"
}

func (g *ChessGame) BeforeCreate(tx *gorm.DB) error {
	if g.GameID == uuid.Nil {
		g.GameID = uuid.New()
	}
	return nil
}

// GameState is the validated shape of the game_state JSON blob. Unknown or
// missing fields are defaulted at the deserialization boundary rather than
// trusted raw.
type GameState struct {
	FEN   string   `json:"fen"`
	Turn  string   `json:"turn"`
	Moves []string `json:"moves"`
}

// NewGameState returns the starting position.
func NewGameState() GameState {
	return GameState{FEN: startFEN, Turn: "w", Moves: []string{}}
}

// DecodeGameState parses a stored blob, filling defaults for missing fields.
func DecodeGameState(raw datatypes.JSON) (GameState, error) {
	state := NewGameState()
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return GameState{}, err
	}
	if state.FEN == "" {
		state.FEN = startFEN
	}
	if state.Turn != "w" && state.Turn != "b" {
		state.Turn = "w"
	}
	if state.Moves == nil {
		state.Moves = []string{}
	}
	return state, nil
}

// Encode marshals the state back into a JSON column value.
func (s GameState) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
