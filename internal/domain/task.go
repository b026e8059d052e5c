package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "PENDING"
	TaskStatusInProgress      TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted       TaskStatus = "COMPLETED"
	TaskStatusHandover        TaskStatus = "HANDOVER"
	TaskStatusOverdue         TaskStatus = "OVERDUE"
	TaskStatusPendingApproval TaskStatus = "PENDING_APPROVAL"
)

// MaxTaskBreaks caps how many breaks a single task allows.
const MaxTaskBreaks = 2

// Task is an assignment unit with a wall-clock timer. Elapsed time is always
// derived from TimerStartedAt, never from a client-side counter, so reloads
// reconstruct it exactly.
type Task struct {
	TaskID         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"taskId"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	AssigneeID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"assigneeId"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid;not null" json:"createdBy"`
	Status         TaskStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	TimerStartedAt *time.Time     `gorm:"type:timestamptz" json:"timerStartedAt,omitempty"`
	BreakStartedAt *time.Time     `gorm:"type:timestamptz" json:"breakStartedAt,omitempty"`
	BreaksTaken    int            `gorm:"default:0" json:"breaksTaken"`
	DueAt          *time.Time     `gorm:"type:timestamptz;index" json:"dueAt,omitempty"`
	Points         int            `gorm:"default:0" json:"points"`
	IsTrial        bool           `gorm:"default:false" json:"isTrial"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.TaskID == uuid.Nil {
		t.TaskID = uuid.New()
	}
	return nil
}

// TimerSnapshot is the reconstructed timer view served after a reload.
type TimerSnapshot struct {
	TaskID         uuid.UUID  `json:"taskId"`
	Status         TaskStatus `json:"status"`
	Elapsed        int64      `json:"elapsedSeconds"`
	Remaining      *int64     `json:"remainingSeconds,omitempty"`
	OnBreak        bool       `json:"onBreak"`
	BreakRemaining *int64     `json:"breakRemainingSeconds,omitempty"`
	BreaksTaken    int        `json:"breaksTaken"`
}
