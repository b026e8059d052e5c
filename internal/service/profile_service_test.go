package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"office-service/internal/domain"
	"office-service/internal/response"
)

func TestProfileService_GetProfile_NotFound(t *testing.T) {
	repo := &MockProfileRepository{
		GetProfileFunc: func(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := NewProfileService(repo)

	_, err := svc.GetProfile(context.Background(), uuid.New())
	assertAppErrorCode(t, err, response.ErrCodeNotFound)
}

func TestProfileService_GetLayout_DefaultsForEmptyBlob(t *testing.T) {
	repo := &MockProfileRepository{
		GetProfileFunc: func(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error) {
			return &domain.StaffProfile{UserID: userID}, nil
		},
	}
	svc := NewProfileService(repo)

	layout, err := svc.GetLayout(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetLayout() error = %v", err)
	}
	if layout.Version != 1 {
		t.Errorf("expected default version 1, got %d", layout.Version)
	}
	if layout.Widgets == nil || len(layout.Widgets) != 0 {
		t.Errorf("expected empty widget list, got %v", layout.Widgets)
	}
}

func TestProfileService_SaveLayout_ValidatesWidgets(t *testing.T) {
	svc := NewProfileService(&MockProfileRepository{})
	ctx := context.Background()
	userID := uuid.New()

	err := svc.SaveLayout(ctx, userID, domain.WorkspaceLayout{
		Widgets: []domain.Widget{{Kind: "", W: 2, H: 2}},
	})
	assertAppErrorCode(t, err, response.ErrCodeValidation)

	err = svc.SaveLayout(ctx, userID, domain.WorkspaceLayout{
		Widgets: []domain.Widget{{Kind: "chat", W: 0, H: 2}},
	})
	assertAppErrorCode(t, err, response.ErrCodeValidation)
}

func TestProfileService_SaveLayout_PersistsBlob(t *testing.T) {
	var saved datatypes.JSON
	repo := &MockProfileRepository{
		SaveLayoutFunc: func(ctx context.Context, userID uuid.UUID, layout datatypes.JSON) error {
			saved = layout
			return nil
		},
	}
	svc := NewProfileService(repo)

	err := svc.SaveLayout(context.Background(), uuid.New(), domain.WorkspaceLayout{
		Widgets: []domain.Widget{{Kind: "tasks", X: 1, Y: 2, W: 3, H: 4}},
	})
	if err != nil {
		t.Fatalf("SaveLayout() error = %v", err)
	}

	var decoded domain.WorkspaceLayout
	if err := json.Unmarshal(saved, &decoded); err != nil {
		t.Fatalf("saved blob is not valid JSON: %v", err)
	}
	if decoded.Version != 1 {
		t.Errorf("expected version defaulted to 1, got %d", decoded.Version)
	}
	if len(decoded.Widgets) != 1 || decoded.Widgets[0].Kind != "tasks" {
		t.Errorf("expected widget round-tripped, got %v", decoded.Widgets)
	}
}
