package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"office-service/internal/domain"
	"office-service/internal/repository"
	"office-service/internal/response"
)

type ProfileService struct {
	repo repository.ProfileRepository
}

func NewProfileService(repo repository.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewAppError(response.ErrCodeNotFound, "Profile not found", "")
	}
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load profile", err.Error())
	}
	return profile, nil
}

// GetLayout returns the saved workspace layout, defaulting an empty one for
// profiles that never saved.
func (s *ProfileService) GetLayout(ctx context.Context, userID uuid.UUID) (*domain.WorkspaceLayout, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	layout, err := domain.DecodeWorkspaceLayout(profile.WorkspaceLayout)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Corrupt workspace layout", err.Error())
	}
	return &layout, nil
}

// SaveLayout validates and persists the layout blob as one unit.
func (s *ProfileService) SaveLayout(ctx context.Context, userID uuid.UUID, layout domain.WorkspaceLayout) error {
	if layout.Version <= 0 {
		layout.Version = 1
	}
	for _, w := range layout.Widgets {
		if w.Kind == "" {
			return response.NewAppError(response.ErrCodeValidation, "Widget kind is required", "")
		}
		if w.W <= 0 || w.H <= 0 {
			return response.NewAppError(response.ErrCodeValidation, "Widget dimensions must be positive", w.Kind)
		}
	}

	raw, err := json.Marshal(layout)
	if err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to encode layout", err.Error())
	}
	if err := s.repo.SaveLayout(ctx, userID, raw); err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to save layout", err.Error())
	}
	return nil
}
