package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"office-service/internal/domain"
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error)
	AddPoints(ctx context.Context, userID uuid.UUID, points int) error
	SaveLayout(ctx context.Context, userID uuid.UUID, layout datatypes.JSON) error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error) {
	var profile domain.StaffProfile
	err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) AddPoints(ctx context.Context, userID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).Model(&domain.StaffProfile{}).
		Where("user_id = ?", userID).
		Update("points", gorm.Expr("points + ?", points)).Error
}

func (r *profileRepository) SaveLayout(ctx context.Context, userID uuid.UUID, layout datatypes.JSON) error {
	return r.db.WithContext(ctx).Model(&domain.StaffProfile{}).
		Where("user_id = ?", userID).
		Update("workspace_layout", layout).Error
}
