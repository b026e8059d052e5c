package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"office-service/internal/domain"
)

type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// SetStatus upserts the sticky status row. Created on first write, updated on
// every change, never deleted.
func (r *PresenceRepository) SetStatus(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus) error {
	presence := &domain.UserPresence{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Status:      status,
		LastSeen:    time.Now(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_seen", "workspace_id"}),
	}).Create(presence).Error
}

func (r *PresenceRepository) GetStatus(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	var presence domain.UserPresence
	err := r.db.WithContext(ctx).First(&presence, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &presence, nil
}

func (r *PresenceRepository) GetWorkspaceStatuses(ctx context.Context, workspaceID uuid.UUID) ([]domain.UserPresence, error) {
	var presences []domain.UserPresence
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Find(&presences).Error
	return presences, err
}

func (r *PresenceRepository) TouchLastSeen(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.UserPresence{}).
		Where("user_id = ?", userID).
		Update("last_seen", time.Now()).Error
}
