package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StaffProfile is the per-user record the office widgets hang off: department
// for channel visibility, points for completed tasks, and the saved workspace
// layout blob.
type StaffProfile struct {
	UserID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	WorkspaceID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspaceId"`
	DisplayName     string         `gorm:"type:varchar(100);not null" json:"displayName"`
	DepartmentID    *uuid.UUID     `gorm:"type:uuid;index" json:"departmentId,omitempty"`
	Points          int            `gorm:"default:0" json:"points"`
	WorkspaceLayout datatypes.JSON `gorm:"type:jsonb" json:"workspaceLayout,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (StaffProfile) TableName() string {
	return "staff_profiles"
}

// WorkspaceLayout is the validated shape of the layout blob.
type WorkspaceLayout struct {
	Version int      `json:"version"`
	Widgets []Widget `json:"widgets"`
}

type Widget struct {
	Kind string `json:"kind"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
}

// DecodeWorkspaceLayout parses a stored layout, defaulting missing fields.
func DecodeWorkspaceLayout(raw datatypes.JSON) (WorkspaceLayout, error) {
	layout := WorkspaceLayout{Version: 1, Widgets: []Widget{}}
	if len(raw) == 0 {
		return layout, nil
	}
	if err := json.Unmarshal(raw, &layout); err != nil {
		return WorkspaceLayout{}, err
	}
	if layout.Version == 0 {
		layout.Version = 1
	}
	if layout.Widgets == nil {
		layout.Widgets = []Widget{}
	}
	return layout, nil
}
