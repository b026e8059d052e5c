package service

import (
	"fmt"
	"math/rand"

	"github.com/notnil/chess"

	"office-service/internal/domain"
)

// gameOutcome describes a finished position. Winner is "w", "b" or "" for a
// draw. On checkmate the winner is the side that delivered mate, i.e. not the
// side to move in the final position.
type gameOutcome struct {
	Winner string
	Method string
}

func loadPosition(state domain.GameState) (*chess.Game, error) {
	fen, err := chess.FEN(state.FEN)
	if err != nil {
		return nil, fmt.Errorf("invalid stored position: %w", err)
	}
	return chess.NewGame(fen), nil
}

// applyMove validates and applies a UCI move, returning the updated state and
// a non-nil outcome when the game reached a terminal position.
func applyMove(state domain.GameState, uci string) (domain.GameState, *gameOutcome, error) {
	game, err := loadPosition(state)
	if err != nil {
		return domain.GameState{}, nil, err
	}

	move, err := chess.UCINotation{}.Decode(game.Position(), uci)
	if err != nil {
		return domain.GameState{}, nil, fmt.Errorf("invalid move %q: %w", uci, err)
	}
	if err := game.Move(move); err != nil {
		return domain.GameState{}, nil, fmt.Errorf("illegal move %q: %w", uci, err)
	}

	next := domain.GameState{
		FEN:   game.Position().String(),
		Turn:  colorLetter(game.Position().Turn()),
		Moves: append(append([]string{}, state.Moves...), uci),
	}

	return next, outcomeOf(game), nil
}

// botMove picks the bot's reply: uniformly random among capturing moves when
// any exist, otherwise uniformly random among all legal moves.
func botMove(state domain.GameState) (string, error) {
	game, err := loadPosition(state)
	if err != nil {
		return "", err
	}

	moves := game.ValidMoves()
	if len(moves) == 0 {
		return "", fmt.Errorf("no legal moves in position %s", state.FEN)
	}

	var captures []*chess.Move
	for _, m := range moves {
		if m.HasTag(chess.Capture) {
			captures = append(captures, m)
		}
	}

	pool := moves
	if len(captures) > 0 {
		pool = captures
	}
	pick := pool[rand.Intn(len(pool))]
	return chess.UCINotation{}.Encode(game.Position(), pick), nil
}

func outcomeOf(game *chess.Game) *gameOutcome {
	switch game.Outcome() {
	case chess.NoOutcome:
		return nil
	case chess.WhiteWon:
		return &gameOutcome{Winner: "w", Method: game.Method().String()}
	case chess.BlackWon:
		return &gameOutcome{Winner: "b", Method: game.Method().String()}
	default:
		return &gameOutcome{Method: game.Method().String()}
	}
}

func colorLetter(c chess.Color) string {
	if c == chess.White {
		return "w"
	}
	return "b"
}
