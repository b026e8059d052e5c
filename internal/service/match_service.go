package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/config"
	"office-service/internal/domain"
	"office-service/internal/repository"
	"office-service/internal/response"
)

// MatchService runs the casual-chess matchmaking queue: claim an existing
// waiting game, or park a waiting row and poll until claimed, falling back to
// a bot opponent on timeout. A waiting row never outlives its creator's
// attempt on any exit path.
type MatchService struct {
	gameRepo  repository.GameRepository
	publisher EventPublisher
	logger    *zap.Logger

	pollInterval time.Duration
	timeout      time.Duration
}

func NewMatchService(
	gameRepo repository.GameRepository,
	publisher EventPublisher,
	cfg config.MatchmakingConfig,
	logger *zap.Logger,
) *MatchService {
	return &MatchService{
		gameRepo:     gameRepo,
		publisher:    publisher,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
	}
}

// FindRandomMatch blocks until a match is made, the timeout elapses (bot
// fallback) or ctx is cancelled. Timeout is a defined path, not an error.
func (s *MatchService) FindRandomMatch(ctx context.Context, userID uuid.UUID) (*domain.ChessGame, error) {
	// Fast path: claim someone else's waiting game. Claim and opponent
	// attach are one atomic update inside the repository.
	claimed, err := s.gameRepo.ClaimWaiting(ctx, userID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking failed", err.Error())
	}
	if claimed != nil {
		s.notifyMatched(ctx, claimed)
		return claimed, nil
	}

	// Nobody waiting: park our own entry and poll.
	state, err := domain.NewGameState().Encode()
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking failed", err.Error())
	}
	waiting := &domain.ChessGame{
		Player1ID: userID,
		Status:    domain.GameStatusWaiting,
		GameState: state,
	}
	if err := s.gameRepo.CreateGame(ctx, waiting); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking failed", err.Error())
	}

	game, err := s.pollForOpponent(ctx, waiting.GameID, userID)
	if err != nil {
		return nil, err
	}
	if game != nil {
		return game, nil
	}

	// Timeout: substitute a bot opponent. The waiting row was already
	// removed by pollForOpponent.
	return s.createBotGame(ctx, userID)
}

// pollForOpponent returns the claimed game, or nil on timeout. The waiting
// row is deleted on every non-claimed exit, including cancellation.
func (s *MatchService) pollForOpponent(ctx context.Context, gameID, ownerID uuid.UUID) (*domain.ChessGame, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	cleanup := func() {
		// Best-effort: the delete is guarded on status WAITING, so a claim
		// racing the timeout wins and the row survives as an active game.
		if err := s.gameRepo.DeleteWaiting(context.Background(), gameID, ownerID); err != nil {
			s.logger.Warn("failed to remove waiting game",
				zap.String("gameId", gameID.String()),
				zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			cleanup()
			return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking cancelled", ctx.Err().Error())
		case <-deadline.C:
			// Re-check once: a claim may have landed just before the timer.
			game, err := s.gameRepo.GetGameByID(ctx, gameID)
			if err == nil && game.Status == domain.GameStatusActive {
				s.notifyMatched(ctx, game)
				return game, nil
			}
			cleanup()
			return nil, nil
		case <-ticker.C:
			game, err := s.gameRepo.GetGameByID(ctx, gameID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Swept from under us; treat like timeout.
				return nil, nil
			}
			if err != nil {
				cleanup()
				return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking failed", err.Error())
			}
			if game.Status == domain.GameStatusActive {
				s.notifyMatched(ctx, game)
				return game, nil
			}

			// Still waiting. Another seeker may have parked before us and
			// missed our row the same way we missed theirs; the newer side
			// breaks the standoff by claiming the older row.
			claimed, err := s.gameRepo.ClaimOlderWaiting(ctx, game, ownerID)
			if err != nil {
				s.logger.Warn("failed to claim older waiting game",
					zap.String("gameId", gameID.String()),
					zap.Error(err))
				continue
			}
			if claimed != nil {
				s.notifyMatched(ctx, claimed)
				return claimed, nil
			}
		}
	}
}

func (s *MatchService) createBotGame(ctx context.Context, userID uuid.UUID) (*domain.ChessGame, error) {
	state, err := domain.NewGameState().Encode()
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking failed", err.Error())
	}

	game := &domain.ChessGame{
		Player1ID: userID,
		Status:    domain.GameStatusActive,
		VsBot:     true,
		GameState: state,
	}
	if err := s.gameRepo.CreateGame(ctx, game); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Matchmaking failed", err.Error())
	}

	s.logger.Info("matchmaking timed out, starting bot game",
		zap.String("gameId", game.GameID.String()),
		zap.String("userId", userID.String()))
	return game, nil
}

// SendInvite creates a direct PENDING game, bypassing the queue.
func (s *MatchService) SendInvite(ctx context.Context, fromID, toID uuid.UUID) (*domain.ChessGame, error) {
	if fromID == toID {
		return nil, response.NewAppError(response.ErrCodeValidation, "Cannot invite yourself", "")
	}

	state, err := domain.NewGameState().Encode()
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to create invite", err.Error())
	}

	game := &domain.ChessGame{
		Player1ID: fromID,
		Player2ID: &toID,
		Status:    domain.GameStatusPending,
		GameState: state,
	}
	if err := s.gameRepo.CreateGame(ctx, game); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to create invite", err.Error())
	}

	s.publish(ctx, UserChannel(toID.String()), Event{
		Type:   EventGameInvite,
		GameID: game.GameID.String(),
		UserID: fromID.String(),
	})
	return game, nil
}

func (s *MatchService) AcceptInvite(ctx context.Context, gameID, userID uuid.UUID) (*domain.ChessGame, error) {
	if _, err := s.gameRepo.GetPendingInvite(ctx, gameID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewAppError(response.ErrCodeNotFound, "Invite not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to accept invite", err.Error())
	}

	if err := s.gameRepo.UpdateStatus(ctx, gameID, domain.GameStatusPending, domain.GameStatusActive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewAppError(response.ErrCodeConflict, "Invite is no longer pending", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to accept invite", err.Error())
	}

	game, err := s.gameRepo.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load game", err.Error())
	}
	s.notifyMatched(ctx, game)
	return game, nil
}

func (s *MatchService) DeclineInvite(ctx context.Context, gameID, userID uuid.UUID) error {
	if _, err := s.gameRepo.GetPendingInvite(ctx, gameID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewAppError(response.ErrCodeNotFound, "Invite not found", "")
		}
		return response.NewAppError(response.ErrCodeInternal, "Failed to decline invite", err.Error())
	}

	if err := s.gameRepo.UpdateStatus(ctx, gameID, domain.GameStatusPending, domain.GameStatusDeclined); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewAppError(response.ErrCodeConflict, "Invite is no longer pending", "")
		}
		return response.NewAppError(response.ErrCodeInternal, "Failed to decline invite", err.Error())
	}

	game, err := s.gameRepo.GetGameByID(ctx, gameID)
	if err == nil {
		s.publish(ctx, UserChannel(game.Player1ID.String()), Event{
			Type:   EventGameDeclined,
			GameID: gameID.String(),
			UserID: userID.String(),
		})
	}
	return nil
}

// GetGame returns the game as seen by one of its players.
func (s *MatchService) GetGame(ctx context.Context, gameID, userID uuid.UUID) (*domain.ChessGame, error) {
	game, err := s.gameRepo.GetGameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewAppError(response.ErrCodeNotFound, "Game not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load game", err.Error())
	}
	if userID != game.Player1ID && (game.Player2ID == nil || userID != *game.Player2ID) {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not a player in this game", "")
	}
	return game, nil
}

// Move applies one player move; in bot games the bot replies within the same
// call so the client sees both moves in one response.
func (s *MatchService) Move(ctx context.Context, gameID, userID uuid.UUID, uci string) (*domain.ChessGame, error) {
	game, err := s.gameRepo.GetGameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewAppError(response.ErrCodeNotFound, "Game not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load game", err.Error())
	}
	if game.Status != domain.GameStatusActive {
		return nil, response.NewAppError(response.ErrCodeConflict, "Game is not active", string(game.Status))
	}

	state, err := domain.DecodeGameState(game.GameState)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Corrupt game state", err.Error())
	}

	if err := s.checkTurn(game, state, userID); err != nil {
		return nil, err
	}

	next, outcome, err := applyMove(state, uci)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeValidation, "Invalid move", err.Error())
	}

	if outcome == nil && game.VsBot {
		reply, err := botMove(next)
		if err != nil {
			return nil, response.NewAppError(response.ErrCodeInternal, "Bot move failed", err.Error())
		}
		next, outcome, err = applyMove(next, reply)
		if err != nil {
			return nil, response.NewAppError(response.ErrCodeInternal, "Bot move failed", err.Error())
		}
	}

	encoded, err := next.Encode()
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to encode game state", err.Error())
	}
	game.GameState = encoded

	if outcome != nil {
		game.Status = domain.GameStatusCompleted
		game.WinnerID = s.winnerID(game, outcome)
	}

	if err := s.gameRepo.SaveState(ctx, gameID, game); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to save move", err.Error())
	}

	event := Event{
		Type:   EventGameMove,
		GameID: gameID.String(),
		UserID: userID.String(),
		Payload: map[string]interface{}{
			"fen":   next.FEN,
			"turn":  next.Turn,
			"moves": next.Moves,
		},
	}
	if outcome != nil {
		event.Type = EventGameOver
		event.Payload["method"] = outcome.Method
		if game.WinnerID != nil {
			event.Payload["winnerId"] = game.WinnerID.String()
		}
	}
	s.publishToPlayers(ctx, game, event)

	return game, nil
}

// checkTurn verifies the mover plays the side to move: player1 is white,
// player2 (or the bot) is black.
func (s *MatchService) checkTurn(game *domain.ChessGame, state domain.GameState, userID uuid.UUID) error {
	var mover string
	switch {
	case userID == game.Player1ID:
		mover = "w"
	case game.Player2ID != nil && userID == *game.Player2ID:
		mover = "b"
	default:
		return response.NewAppError(response.ErrCodeForbidden, "Not a player in this game", "")
	}
	if mover != state.Turn {
		return response.NewAppError(response.ErrCodeConflict, "Not your turn", "")
	}
	return nil
}

// winnerID maps the board outcome to a player id; draws have none.
func (s *MatchService) winnerID(game *domain.ChessGame, outcome *gameOutcome) *uuid.UUID {
	switch outcome.Winner {
	case "w":
		id := game.Player1ID
		return &id
	case "b":
		if game.Player2ID != nil {
			return game.Player2ID
		}
		return nil // bot win: no user id to credit
	}
	return nil
}

func (s *MatchService) notifyMatched(ctx context.Context, game *domain.ChessGame) {
	event := Event{Type: EventGameMatched, GameID: game.GameID.String()}
	s.publishToPlayers(ctx, game, event)
}

func (s *MatchService) publishToPlayers(ctx context.Context, game *domain.ChessGame, event Event) {
	s.publish(ctx, UserChannel(game.Player1ID.String()), event)
	if game.Player2ID != nil {
		s.publish(ctx, UserChannel(game.Player2ID.String()), event)
	}
}

func (s *MatchService) publish(ctx context.Context, channel string, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, channel, event); err != nil {
		s.logger.Warn("game event broadcast failed", zap.Error(err))
	}
}
