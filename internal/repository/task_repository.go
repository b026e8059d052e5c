package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"office-service/internal/domain"
)

type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	GetTasksByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	UpdateFields(ctx context.Context, taskID uuid.UUID, fields map[string]interface{}) error
	GetTasksOnBreak(ctx context.Context) ([]domain.Task, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) GetTaskByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).First(&task, "task_id = ?", taskID).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) GetTasksByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("assignee_id = ?", assigneeID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) UpdateTask(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *taskRepository) UpdateFields(ctx context.Context, taskID uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("task_id = ?", taskID).
		Updates(fields).Error
}

// GetTasksOnBreak returns tasks with an unfinished break, used to re-arm
// auto-resume timers after a restart.
func (r *taskRepository) GetTasksOnBreak(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("break_started_at IS NOT NULL").
		Find(&tasks).Error
	return tasks, err
}

// MarkOverdue flips in-progress tasks whose due date has passed.
func (r *taskRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("status = ? AND due_at IS NOT NULL AND due_at < ?", domain.TaskStatusInProgress, now).
		Update("status", domain.TaskStatusOverdue)
	return res.RowsAffected, res.Error
}
