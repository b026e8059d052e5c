package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"office-service/internal/domain"
	"office-service/internal/middleware"
	"office-service/internal/response"
	"office-service/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskTimerService
}

func NewTaskHandler(taskService *service.TaskTimerService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	AssigneeID  string     `json:"assigneeId" binding:"required,uuid"`
	DueAt       *time.Time `json:"dueAt"`
	Points      int        `json:"points"`
	IsTrial     bool       `json:"isTrial"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, err.Error())
		return
	}

	assigneeID, err := uuid.Parse(req.AssigneeID)
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid assignee ID")
		return
	}

	task := &domain.Task{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  assigneeID,
		CreatedBy:   userID,
		DueAt:       req.DueAt,
		Points:      req.Points,
		IsTrial:     req.IsTrial,
	}
	if err := h.taskService.CreateTask(c.Request.Context(), task); err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, task)
}

func (h *TaskHandler) GetMyTasks(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	tasks, err := h.taskService.GetTasksByAssignee(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, tasks)
}

// transition wraps the assignee-driven state changes sharing the same shape.
func (h *TaskHandler) transition(c *gin.Context, fn func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error)) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "User not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid task ID")
		return
	}

	task, err := fn(c, taskID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, task)
}

func (h *TaskHandler) Start(c *gin.Context) {
	h.transition(c, func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
		return h.taskService.Start(c.Request.Context(), taskID, userID)
	})
}

func (h *TaskHandler) StartBreak(c *gin.Context) {
	h.transition(c, func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
		return h.taskService.StartBreak(c.Request.Context(), taskID, userID)
	})
}

func (h *TaskHandler) EndBreak(c *gin.Context) {
	h.transition(c, func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
		return h.taskService.EndBreak(c.Request.Context(), taskID, userID)
	})
}

func (h *TaskHandler) Complete(c *gin.Context) {
	h.transition(c, func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
		return h.taskService.Complete(c.Request.Context(), taskID, userID)
	})
}

func (h *TaskHandler) Approve(c *gin.Context) {
	h.transition(c, func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
		task, err := h.taskService.Approve(c.Request.Context(), taskID, userID)
		if err == nil {
			middleware.RecordTaskCompleted()
		}
		return task, err
	})
}

func (h *TaskHandler) Handover(c *gin.Context) {
	h.transition(c, func(c *gin.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
		return h.taskService.Handover(c.Request.Context(), taskID, userID)
	})
}

// GetTimer returns the reconstructed timer view. Nothing here comes from a
// running counter; it is all derived from stored timestamps.
func (h *TaskHandler) GetTimer(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid task ID")
		return
	}

	snapshot, err := h.taskService.Snapshot(c.Request.Context(), taskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, snapshot)
}
