package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/config"
	"office-service/internal/domain"
	"office-service/internal/repository"
	"office-service/internal/response"
)

// TaskTimerService drives the per-task timer state machine. Elapsed time is
// always reconstructed from the persisted start timestamp, so a page reload
// (or a service restart) never loses progress. Break auto-resume is a
// wall-clock timer that fires with zero user interaction.
type TaskTimerService struct {
	taskRepo    repository.TaskRepository
	profileRepo repository.ProfileRepository
	publisher   EventPublisher
	logger      *zap.Logger

	breakDuration time.Duration

	mu          sync.Mutex
	breakTimers map[uuid.UUID]*time.Timer
	closed      bool
}

func NewTaskTimerService(
	taskRepo repository.TaskRepository,
	profileRepo repository.ProfileRepository,
	publisher EventPublisher,
	cfg config.TasksConfig,
	logger *zap.Logger,
) *TaskTimerService {
	return &TaskTimerService{
		taskRepo:      taskRepo,
		profileRepo:   profileRepo,
		publisher:     publisher,
		logger:        logger,
		breakDuration: cfg.BreakDuration,
		breakTimers:   make(map[uuid.UUID]*time.Timer),
	}
}

func (s *TaskTimerService) CreateTask(ctx context.Context, task *domain.Task) error {
	if task.Title == "" {
		return response.NewAppError(response.ErrCodeValidation, "Task title is required", "")
	}
	task.Status = domain.TaskStatusPending
	if err := s.taskRepo.CreateTask(ctx, task); err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to create task", err.Error())
	}
	return nil
}

func (s *TaskTimerService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.loadTask(ctx, taskID)
}

func (s *TaskTimerService) GetTasksByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]domain.Task, error) {
	tasks, err := s.taskRepo.GetTasksByAssignee(ctx, assigneeID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load tasks", err.Error())
	}
	return tasks, nil
}

// Start moves a pending (or handed-over) task into progress and stamps the
// timer start. An existing stamp is kept so restarts resume, not reset.
func (s *TaskTimerService) Start(ctx context.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != userID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not the task assignee", "")
	}
	if task.Status != domain.TaskStatusPending && task.Status != domain.TaskStatusHandover {
		return nil, response.NewAppError(response.ErrCodeConflict, "Task cannot be started", string(task.Status))
	}

	fields := map[string]interface{}{"status": domain.TaskStatusInProgress}
	if task.TimerStartedAt == nil {
		now := time.Now()
		fields["timer_started_at"] = now
		task.TimerStartedAt = &now
	}
	if err := s.taskRepo.UpdateFields(ctx, taskID, fields); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to start task", err.Error())
	}
	task.Status = domain.TaskStatusInProgress

	s.publishTimer(ctx, task, "started")
	return task, nil
}

// StartBreak consumes one of the allowed breaks and schedules the automatic
// resume. The 3rd request is rejected before anything is written.
func (s *TaskTimerService) StartBreak(ctx context.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != userID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not the task assignee", "")
	}
	if task.Status != domain.TaskStatusInProgress {
		return nil, response.NewAppError(response.ErrCodeConflict, "Breaks are only allowed while working", string(task.Status))
	}
	if task.BreakStartedAt != nil {
		return nil, response.NewAppError(response.ErrCodeConflict, "Already on a break", "")
	}
	if task.BreaksTaken >= domain.MaxTaskBreaks {
		return nil, response.NewAppError(response.ErrCodeConflict, "No breaks remaining", "")
	}

	now := time.Now()
	if err := s.taskRepo.UpdateFields(ctx, taskID, map[string]interface{}{
		"break_started_at": now,
		"breaks_taken":     task.BreaksTaken + 1,
	}); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to start break", err.Error())
	}
	task.BreakStartedAt = &now
	task.BreaksTaken++

	s.scheduleAutoResume(taskID)
	s.publishTimer(ctx, task, "break_started")
	return task, nil
}

// EndBreak resumes early. Safe to call when not on a break.
func (s *TaskTimerService) EndBreak(ctx context.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != userID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not the task assignee", "")
	}
	if task.BreakStartedAt == nil {
		return task, nil
	}

	s.cancelAutoResume(taskID)
	if err := s.clearBreak(ctx, taskID); err != nil {
		return nil, err
	}
	task.BreakStartedAt = nil

	s.publishTimer(ctx, task, "break_ended")
	return task, nil
}

// Complete submits the task for approval.
func (s *TaskTimerService) Complete(ctx context.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != userID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not the task assignee", "")
	}
	if task.Status != domain.TaskStatusInProgress && task.Status != domain.TaskStatusOverdue {
		return nil, response.NewAppError(response.ErrCodeConflict, "Task cannot be completed", string(task.Status))
	}

	s.cancelAutoResume(taskID)
	if err := s.taskRepo.UpdateFields(ctx, taskID, map[string]interface{}{
		"status":           domain.TaskStatusPendingApproval,
		"break_started_at": nil,
	}); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to complete task", err.Error())
	}
	task.Status = domain.TaskStatusPendingApproval
	task.BreakStartedAt = nil

	s.publishTimer(ctx, task, "submitted")
	return task, nil
}

// Approve finalizes a submitted task and credits points. Trial-period tasks
// award nothing.
func (s *TaskTimerService) Approve(ctx context.Context, taskID, leadID uuid.UUID) (*domain.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CreatedBy != leadID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Only the task creator can approve", "")
	}
	if task.Status != domain.TaskStatusPendingApproval {
		return nil, response.NewAppError(response.ErrCodeConflict, "Task is not awaiting approval", string(task.Status))
	}

	if err := s.taskRepo.UpdateFields(ctx, taskID, map[string]interface{}{
		"status": domain.TaskStatusCompleted,
	}); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to approve task", err.Error())
	}
	task.Status = domain.TaskStatusCompleted

	if !task.IsTrial && task.Points > 0 {
		if err := s.profileRepo.AddPoints(ctx, task.AssigneeID, task.Points); err != nil {
			s.logger.Error("failed to credit task points",
				zap.String("taskId", taskID.String()),
				zap.Error(err))
		}
	}

	s.publishTimer(ctx, task, "completed")
	return task, nil
}

// Handover flags the task for reassignment.
func (s *TaskTimerService) Handover(ctx context.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != userID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not the task assignee", "")
	}
	if task.Status != domain.TaskStatusInProgress {
		return nil, response.NewAppError(response.ErrCodeConflict, "Task cannot be handed over", string(task.Status))
	}

	s.cancelAutoResume(taskID)
	if err := s.taskRepo.UpdateFields(ctx, taskID, map[string]interface{}{
		"status":           domain.TaskStatusHandover,
		"break_started_at": nil,
	}); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to hand over task", err.Error())
	}
	task.Status = domain.TaskStatusHandover
	return task, nil
}

// Snapshot reconstructs the timer view from persisted timestamps only.
func (s *TaskTimerService) Snapshot(ctx context.Context, taskID uuid.UUID) (*domain.TimerSnapshot, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snap := &domain.TimerSnapshot{
		TaskID:      task.TaskID,
		Status:      task.Status,
		BreaksTaken: task.BreaksTaken,
	}

	if task.TimerStartedAt != nil {
		snap.Elapsed = int64(now.Sub(*task.TimerStartedAt).Seconds())
	}
	if task.DueAt != nil {
		remaining := int64(task.DueAt.Sub(now).Seconds())
		snap.Remaining = &remaining
	}
	if task.BreakStartedAt != nil {
		snap.OnBreak = true
		breakRemaining := int64(task.BreakStartedAt.Add(s.breakDuration).Sub(now).Seconds())
		if breakRemaining < 0 {
			breakRemaining = 0
		}
		snap.BreakRemaining = &breakRemaining
	}
	return snap, nil
}

// ResumeBreakTimers re-arms auto-resume for breaks that were in flight when
// the process restarted. Breaks already past their window resume immediately.
func (s *TaskTimerService) ResumeBreakTimers(ctx context.Context) error {
	tasks, err := s.taskRepo.GetTasksOnBreak(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, task := range tasks {
		taskID := task.TaskID
		remaining := task.BreakStartedAt.Add(s.breakDuration).Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		s.mu.Lock()
		if !s.closed {
			s.breakTimers[taskID] = time.AfterFunc(remaining, func() {
				s.autoResume(taskID)
			})
		}
		s.mu.Unlock()
	}
	return nil
}

// Close stops all pending auto-resume timers.
func (s *TaskTimerService) Close() {
	s.mu.Lock()
	s.closed = true
	for taskID, timer := range s.breakTimers {
		timer.Stop()
		delete(s.breakTimers, taskID)
	}
	s.mu.Unlock()
}

func (s *TaskTimerService) scheduleAutoResume(taskID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.breakTimers[taskID]; ok {
		timer.Stop()
	}
	s.breakTimers[taskID] = time.AfterFunc(s.breakDuration, func() {
		s.autoResume(taskID)
	})
}

func (s *TaskTimerService) cancelAutoResume(taskID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.breakTimers[taskID]; ok {
		timer.Stop()
		delete(s.breakTimers, taskID)
	}
}

// autoResume is the wall-clock transition back to running. It must fire even
// if the user never returns.
func (s *TaskTimerService) autoResume(taskID uuid.UUID) {
	s.mu.Lock()
	if _, ok := s.breakTimers[taskID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.breakTimers, taskID)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.clearBreak(ctx, taskID); err != nil {
		s.logger.Error("break auto-resume failed",
			zap.String("taskId", taskID.String()),
			zap.Error(err))
		return
	}

	task, err := s.loadTask(ctx, taskID)
	if err == nil {
		s.publishTimer(ctx, task, "break_ended")
	}
}

func (s *TaskTimerService) clearBreak(ctx context.Context, taskID uuid.UUID) error {
	if err := s.taskRepo.UpdateFields(ctx, taskID, map[string]interface{}{
		"break_started_at": nil,
	}); err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to end break", err.Error())
	}
	return nil
}

func (s *TaskTimerService) loadTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.taskRepo.GetTaskByID(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewAppError(response.ErrCodeNotFound, "Task not found", "")
	}
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load task", err.Error())
	}
	return task, nil
}

func (s *TaskTimerService) publishTimer(ctx context.Context, task *domain.Task, phase string) {
	if s.publisher == nil {
		return
	}
	event := Event{
		Type:   EventTaskTimer,
		TaskID: task.TaskID.String(),
		UserID: task.AssigneeID.String(),
		Payload: map[string]interface{}{
			"phase":       phase,
			"status":      task.Status,
			"breaksTaken": task.BreaksTaken,
		},
	}
	if err := s.publisher.Publish(ctx, UserChannel(task.AssigneeID.String()), event); err != nil {
		s.logger.Debug("task timer broadcast failed", zap.Error(err))
	}
}
