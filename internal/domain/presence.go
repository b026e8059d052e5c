package domain

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is the sticky, user-chosen status. It survives reconnects and
// is independent of whether the user currently holds a live connection.
type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "ONLINE"
	PresenceStatusAway    PresenceStatus = "AWAY"
	PresenceStatusBusy    PresenceStatus = "BUSY"
	PresenceStatusOnBreak PresenceStatus = "ON_BREAK"
	PresenceStatusOffline PresenceStatus = "OFFLINE"
)

// ValidPresenceStatus reports whether s is one of the known status values.
func ValidPresenceStatus(s PresenceStatus) bool {
	switch s {
	case PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy,
		PresenceStatusOnBreak, PresenceStatusOffline:
		return true
	}
	return false
}

// UserPresence stores the sticky status. The live "joined" signal is tracked by
// the websocket hub only and never persisted; a member can be joined while their
// stored status still says OFFLINE, and vice versa.
type UserPresence struct {
	UserID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;not null;index:idx_presence_workspace_status" json:"workspaceId"`
	Status      PresenceStatus `gorm:"type:varchar(20);default:'OFFLINE';index:idx_presence_workspace_status" json:"status"`
	LastSeen    time.Time      `gorm:"type:timestamptz;default:now();not null" json:"lastSeen"`
}

func (UserPresence) TableName() string {
	return "user_presences"
}

// MemberPresence is the merged view served to clients: the conjunction of the
// live join set and the stored status.
type MemberPresence struct {
	UserID    uuid.UUID      `json:"userId"`
	Status    PresenceStatus `json:"status"`
	IsJoined  bool           `json:"isJoined"`
	Available bool           `json:"available"`
	LastSeen  time.Time      `json:"lastSeen"`
}
