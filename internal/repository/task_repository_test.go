package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"office-service/internal/domain"
)

func setupTaskTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Create tasks table for SQLite compatibility
	db.Exec(`CREATE TABLE tasks (
		task_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		assignee_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		timer_started_at DATETIME,
		break_started_at DATETIME,
		breaks_taken INTEGER DEFAULT 0,
		due_at DATETIME,
		points INTEGER DEFAULT 0,
		is_trial INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	)`)

	return db
}

func insertTask(t *testing.T, db *gorm.DB, status domain.TaskStatus, dueAt, breakStartedAt *time.Time) *domain.Task {
	t.Helper()
	task := &domain.Task{
		TaskID:         uuid.New(),
		Title:          "wireframes",
		AssigneeID:     uuid.New(),
		CreatedBy:      uuid.New(),
		Status:         status,
		DueAt:          dueAt,
		BreakStartedAt: breakStartedAt,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to insert task: %v", err)
	}
	return task
}

func TestTaskRepository_MarkOverdue(t *testing.T) {
	db := setupTaskTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	overdue := insertTask(t, db, domain.TaskStatusInProgress, &past, nil)
	notDue := insertTask(t, db, domain.TaskStatusInProgress, &future, nil)
	notStarted := insertTask(t, db, domain.TaskStatusPending, &past, nil)
	noDueDate := insertTask(t, db, domain.TaskStatusInProgress, nil, nil)

	flipped, err := repo.MarkOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("MarkOverdue() error = %v", err)
	}
	if flipped != 1 {
		t.Errorf("expected 1 task flipped, got %d", flipped)
	}

	assertStatus := func(taskID uuid.UUID, want domain.TaskStatus) {
		t.Helper()
		task, err := repo.GetTaskByID(ctx, taskID)
		if err != nil {
			t.Fatalf("GetTaskByID() error = %v", err)
		}
		if task.Status != want {
			t.Errorf("task %v: expected status %s, got %s", taskID, want, task.Status)
		}
	}

	assertStatus(overdue.TaskID, domain.TaskStatusOverdue)
	assertStatus(notDue.TaskID, domain.TaskStatusInProgress)
	assertStatus(notStarted.TaskID, domain.TaskStatusPending)
	assertStatus(noDueDate.TaskID, domain.TaskStatusInProgress)
}

func TestTaskRepository_GetTasksOnBreak(t *testing.T) {
	db := setupTaskTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	breakStart := time.Now().Add(-2 * time.Minute)
	onBreak := insertTask(t, db, domain.TaskStatusInProgress, nil, &breakStart)
	insertTask(t, db, domain.TaskStatusInProgress, nil, nil)

	tasks, err := repo.GetTasksOnBreak(ctx)
	if err != nil {
		t.Fatalf("GetTasksOnBreak() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task on break, got %d", len(tasks))
	}
	if tasks[0].TaskID != onBreak.TaskID {
		t.Errorf("expected task %v, got %v", onBreak.TaskID, tasks[0].TaskID)
	}
}

func TestTaskRepository_UpdateFields_ClearsBreak(t *testing.T) {
	db := setupTaskTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	breakStart := time.Now()
	task := insertTask(t, db, domain.TaskStatusInProgress, nil, &breakStart)

	err := repo.UpdateFields(ctx, task.TaskID, map[string]interface{}{
		"break_started_at": nil,
	})
	if err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}

	reloaded, err := repo.GetTaskByID(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetTaskByID() error = %v", err)
	}
	if reloaded.BreakStartedAt != nil {
		t.Errorf("expected break_started_at cleared, got %v", reloaded.BreakStartedAt)
	}
}

func TestTaskRepository_GetTasksByAssignee(t *testing.T) {
	db := setupTaskTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	assignee := uuid.New()
	mine := &domain.Task{
		TaskID:     uuid.New(),
		Title:      "mine",
		AssigneeID: assignee,
		CreatedBy:  uuid.New(),
		Status:     domain.TaskStatusPending,
	}
	if err := db.Create(mine).Error; err != nil {
		t.Fatalf("failed to insert task: %v", err)
	}
	insertTask(t, db, domain.TaskStatusPending, nil, nil)

	tasks, err := repo.GetTasksByAssignee(ctx, assignee)
	if err != nil {
		t.Fatalf("GetTasksByAssignee() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].TaskID != mine.TaskID {
		t.Errorf("expected only the assignee's task, got %d tasks", len(tasks))
	}
}
