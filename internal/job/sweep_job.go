package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"office-service/internal/repository"
)

// SweepJob is the periodic safety net: it removes waiting matchmaking entries
// whose creator never cleaned up (crash, kill -9) and flags overdue tasks.
// The normal cleanup path is the creator's own timeout handling; this job
// only catches what that path missed.
type SweepJob struct {
	gameRepo repository.GameRepository
	taskRepo repository.TaskRepository
	logger   *zap.Logger

	// waiting rows older than this are considered abandoned
	staleAfter time.Duration
}

func NewSweepJob(
	gameRepo repository.GameRepository,
	taskRepo repository.TaskRepository,
	staleAfter time.Duration,
	logger *zap.Logger,
) *SweepJob {
	return &SweepJob{
		gameRepo:   gameRepo,
		taskRepo:   taskRepo,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

func (j *SweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	swept, err := j.gameRepo.DeleteStaleWaiting(ctx, now.Add(-j.staleAfter))
	if err != nil {
		j.logger.Error("failed to sweep stale waiting games", zap.Error(err))
	} else if swept > 0 {
		j.logger.Info("swept stale waiting games", zap.Int64("count", swept))
	}

	overdue, err := j.taskRepo.MarkOverdue(ctx, now)
	if err != nil {
		j.logger.Error("failed to mark overdue tasks", zap.Error(err))
	} else if overdue > 0 {
		j.logger.Info("marked overdue tasks", zap.Int64("count", overdue))
	}
}
