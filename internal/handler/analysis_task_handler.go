package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/travel-behavior-backend-go/internal/middleware"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/service"
	"github.com/jengzang/travel-behavior-backend-go/pkg/response"
)

// AnalysisTaskHandler handles HTTP requests for analysis tasks
type AnalysisTaskHandler struct {
	service *service.AnalysisTaskService
}

// NewAnalysisTaskHandler creates a new analysis task handler
func NewAnalysisTaskHandler(service *service.AnalysisTaskService) *AnalysisTaskHandler {
	return &AnalysisTaskHandler{service: service}
}

// CreateTaskRequest represents the request body for creating an analysis task
type CreateTaskRequest struct {
	SkillName string             `json:"skill_name" binding:"required"`
	TaskType  string             `json:"task_type" binding:"required"` // INCREMENTAL or FULL_RECOMPUTE
	Params    *models.TaskParams `json:"params"`
}

// CreateTask creates a new analysis task
// POST /api/admin/analysis/tasks
func (h *AnalysisTaskHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	createdBy := c.GetString(middleware.SubjectKey)
	if createdBy == "" {
		createdBy = "admin"
	}

	task, err := h.service.CreateTask(req.SkillName, req.TaskType, req.Params, createdBy)
	switch {
	case errors.Is(err, service.ErrUnknownSkill), errors.Is(err, service.ErrInvalidTaskType), errors.Is(err, service.ErrNothingToDo):
		response.Error(c, http.StatusBadRequest, "Cannot create task", err)
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, "Failed to create task", err)
		return
	}

	response.Created(c, task)
}

// GetTask retrieves a task by ID
// GET /api/admin/analysis/tasks/:id
func (h *AnalysisTaskHandler) GetTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid task ID", err)
		return
	}

	task, err := h.service.GetTask(id)
	if err != nil {
		response.Error(c, http.StatusNotFound, "Task not found", err)
		return
	}

	response.Success(c, task)
}

// ListTasks retrieves all tasks
// GET /api/admin/analysis/tasks
func (h *AnalysisTaskHandler) ListTasks(c *gin.Context) {
	skillName := c.Query("skill_name")
	status := c.Query("status")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	tasks, err := h.service.ListTasks(skillName, status, limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}

	response.Success(c, gin.H{
		"tasks":  tasks,
		"limit":  limit,
		"offset": offset,
	})
}

// CancelTask cancels a running task
// DELETE /api/admin/analysis/tasks/:id
func (h *AnalysisTaskHandler) CancelTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid task ID", err)
		return
	}

	if err := h.service.CancelTask(id); err != nil {
		response.Error(c, http.StatusBadRequest, "Cannot cancel task", err)
		return
	}

	response.Success(c, gin.H{"message": "Task cancelled successfully"})
}
