package service

import (
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"office-service/internal/response"
)

// openTestDB creates an in-memory database with the tables the service tests
// touch. Raw DDL keeps SQLite happy with the postgres column defaults.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	db.Exec(`CREATE TABLE chess_games (
		game_id TEXT PRIMARY KEY,
		player1_id TEXT NOT NULL,
		player2_id TEXT,
		status TEXT NOT NULL,
		vs_bot INTEGER DEFAULT 0,
		game_state TEXT,
		winner_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`)

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

	db.Exec(`CREATE TABLE staff_profiles (
		user_id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		department_id TEXT,
		points INTEGER DEFAULT 0,
		workspace_layout TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	)`)

	db.Exec(`CREATE TABLE user_presences (
		user_id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		status TEXT DEFAULT 'OFFLINE',
		last_seen DATETIME NOT NULL
	)`)

	return db
}

// assertAppErrorCode fails unless err is an AppError with the given code.
func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Errorf("expected error code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}
