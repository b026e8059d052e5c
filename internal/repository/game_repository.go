package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"office-service/internal/domain"
)

type GameRepository interface {
	CreateGame(ctx context.Context, game *domain.ChessGame) error
	GetGameByID(ctx context.Context, gameID uuid.UUID) (*domain.ChessGame, error)
	ClaimWaiting(ctx context.Context, claimerID uuid.UUID) (*domain.ChessGame, error)
	ClaimOlderWaiting(ctx context.Context, own *domain.ChessGame, claimerID uuid.UUID) (*domain.ChessGame, error)
	DeleteWaiting(ctx context.Context, gameID, ownerID uuid.UUID) error
	UpdateStatus(ctx context.Context, gameID uuid.UUID, from, to domain.GameStatus) error
	SaveState(ctx context.Context, gameID uuid.UUID, state *domain.ChessGame) error
	GetPendingInvite(ctx context.Context, gameID, targetID uuid.UUID) (*domain.ChessGame, error)
	DeleteStaleWaiting(ctx context.Context, olderThan time.Time) (int64, error)
}

type gameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) CreateGame(ctx context.Context, game *domain.ChessGame) error {
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *gameRepository) GetGameByID(ctx context.Context, gameID uuid.UUID) (*domain.ChessGame, error) {
	var game domain.ChessGame
	err := r.db.WithContext(ctx).First(&game, "game_id = ?", gameID).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// claimAttempts bounds the select-then-update retry on lost claim races.
const claimAttempts = 5

// ClaimWaiting claims the oldest waiting game not created by the claimer.
// Claim and opponent attach are a single guarded update; a lost race retries
// with the next candidate, a bounded number of times. Returns (nil, nil) when
// no claimable waiting game exists.
func (r *gameRepository) ClaimWaiting(ctx context.Context, claimerID uuid.UUID) (*domain.ChessGame, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var candidate domain.ChessGame
		err := r.db.WithContext(ctx).
			Where("status = ? AND player1_id <> ?", domain.GameStatusWaiting, claimerID).
			Order("created_at ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		res := r.db.WithContext(ctx).Model(&domain.ChessGame{}).
			Where("game_id = ? AND status = ?", candidate.GameID, domain.GameStatusWaiting).
			Updates(map[string]interface{}{
				"status":     domain.GameStatusActive,
				"player2_id": claimerID,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return r.GetGameByID(ctx, candidate.GameID)
		}
		// Someone else claimed it between select and update; try the next one.
	}
	return nil, nil
}

// errClaimLost aborts the claim transaction so the withdrawal rolls back.
var errClaimLost = errors.New("waiting game claimed by another seeker")

// ClaimOlderWaiting resolves the mutual-park race: two seekers who both
// missed the fast path each sit on their own waiting row. The seeker with the
// newer row withdraws it and claims the older one in a single transaction.
// Ordering by (created_at, game_id) means claims only ever point at strictly
// older rows, so two seekers can never claim each other.
//
// Returns (nil, nil) when there is nothing older to claim, when the seeker's
// own row was already claimed, or when the candidate was lost to a race; the
// caller's next poll tick sorts out which.
func (r *gameRepository) ClaimOlderWaiting(ctx context.Context, own *domain.ChessGame, claimerID uuid.UUID) (*domain.ChessGame, error) {
	var claimed *domain.ChessGame
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate domain.ChessGame
		err := tx.
			Where("status = ? AND player1_id <> ?", domain.GameStatusWaiting, claimerID).
			Where("created_at < ? OR (created_at = ? AND game_id < ?)",
				own.CreatedAt, own.CreatedAt, own.GameID).
			Order("created_at ASC, game_id ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		// Withdraw our own row first. Zero rows means someone claimed us in
		// the meantime; leave their claim intact and take no candidate.
		res := tx.
			Where("game_id = ? AND status = ?", own.GameID, domain.GameStatusWaiting).
			Delete(&domain.ChessGame{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		res = tx.Model(&domain.ChessGame{}).
			Where("game_id = ? AND status = ?", candidate.GameID, domain.GameStatusWaiting).
			Updates(map[string]interface{}{
				"status":     domain.GameStatusActive,
				"player2_id": claimerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errClaimLost
		}

		var game domain.ChessGame
		if err := tx.First(&game, "game_id = ?", candidate.GameID).Error; err != nil {
			return err
		}
		claimed = &game
		return nil
	})
	if errors.Is(err, errClaimLost) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// DeleteWaiting removes the owner's queue entry, but only while it is still
// unclaimed. A claimed game is never deleted.
func (r *gameRepository) DeleteWaiting(ctx context.Context, gameID, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("game_id = ? AND player1_id = ? AND status = ?", gameID, ownerID, domain.GameStatusWaiting).
		Delete(&domain.ChessGame{}).Error
}

// UpdateStatus performs a guarded forward transition. ErrRecordNotFound is
// returned when the game is no longer in the expected state.
func (r *gameRepository) UpdateStatus(ctx context.Context, gameID uuid.UUID, from, to domain.GameStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.ChessGame{}).
		Where("game_id = ? AND status = ?", gameID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gameRepository) SaveState(ctx context.Context, gameID uuid.UUID, game *domain.ChessGame) error {
	return r.db.WithContext(ctx).Model(&domain.ChessGame{}).
		Where("game_id = ?", gameID).
		Updates(map[string]interface{}{
			"game_state": game.GameState,
			"status":     game.Status,
			"winner_id":  game.WinnerID,
		}).Error
}

func (r *gameRepository) GetPendingInvite(ctx context.Context, gameID, targetID uuid.UUID) (*domain.ChessGame, error) {
	var game domain.ChessGame
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND player2_id = ? AND status = ?", gameID, targetID, domain.GameStatusPending).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// DeleteStaleWaiting is the sweeper's safety net for waiting rows whose
// creator crashed before cleaning up.
func (r *gameRepository) DeleteStaleWaiting(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.GameStatusWaiting, olderThan).
		Delete(&domain.ChessGame{})
	return res.RowsAffected, res.Error
}
