package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/analysis"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/repository"
)

var (
	ErrUnknownSkill    = errors.New("unknown skill")
	ErrInvalidTaskType = errors.New("invalid task type")
	ErrNothingToDo     = errors.New("no users to analyze")
	ErrTaskNotRunning  = errors.New("task is not running")
)

// AnalysisTaskService handles analysis task business logic
type AnalysisTaskService struct {
	repo   *repository.AnalysisTaskRepository
	deps   analysis.Dependencies
	logger *zap.Logger

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
	running sync.WaitGroup
}

// NewAnalysisTaskService creates a new analysis task service
func NewAnalysisTaskService(repo *repository.AnalysisTaskRepository, deps analysis.Dependencies) *AnalysisTaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisTaskService{
		repo:    repo,
		deps:    deps,
		logger:  logger.Named("tasks"),
		cancels: make(map[int64]context.CancelFunc),
	}
}

// CreateTask records a new analysis task and starts it in the background
func (s *AnalysisTaskService) CreateTask(skillName string, taskType string, params *models.TaskParams, createdBy string) (*models.AnalysisTask, error) {
	task, err := s.NewTask(skillName, taskType, params, createdBy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[task.ID] = cancel
	s.mu.Unlock()

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, task.ID)
			s.mu.Unlock()
			cancel()
		}()

		if err := s.RunTask(ctx, task); err != nil {
			s.logger.Error("analysis task failed", zap.Int64("task_id", task.ID), zap.Error(err))
		}
	}()

	return task, nil
}

// NewTask validates and records a pending task without running it
func (s *AnalysisTaskService) NewTask(skillName string, taskType string, params *models.TaskParams, createdBy string) (*models.AnalysisTask, error) {
	if !analysis.IsRegistered(skillName) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, skillName)
	}

	if taskType != models.TaskTypeIncremental && taskType != models.TaskTypeFullRecompute {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTaskType, taskType)
	}

	var count int
	var err error
	switch {
	case params != nil && len(params.UserIDs) > 0:
		count = len(params.UserIDs)
	case taskType == models.TaskTypeIncremental:
		count, err = s.repo.CountUnprocessedUsers()
	default:
		count, err = s.repo.CountUsers()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count == 0 {
		return nil, ErrNothingToDo
	}

	var paramsJSON *string
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize params: %w", err)
		}
		jsonStr := string(paramsBytes)
		paramsJSON = &jsonStr
	}

	task := &models.AnalysisTask{
		SkillName:  skillName,
		TaskType:   taskType,
		Status:     models.TaskStatusPending,
		TotalUsers: count,
		ParamsJSON: paramsJSON,
		CreatedBy:  createdBy,
	}

	if err := s.repo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// RunTask executes a recorded task in-process and blocks until it finishes
func (s *AnalysisTaskService) RunTask(ctx context.Context, task *models.AnalysisTask) error {
	analyzer := analysis.GetAnalyzer(task.SkillName, s.deps)
	if analyzer == nil {
		err := fmt.Errorf("%w: %s", ErrUnknownSkill, task.SkillName)
		if markErr := s.repo.MarkAsFailed(task.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark task as failed", zap.Int64("task_id", task.ID), zap.Error(markErr))
		}
		return err
	}

	mode := analysis.ModeIncremental
	if task.TaskType == models.TaskTypeFullRecompute {
		mode = analysis.ModeFull
	}

	s.logger.Info("running analysis task",
		zap.Int64("task_id", task.ID),
		zap.String("skill", task.SkillName),
		zap.String("mode", mode))

	return analyzer.Analyze(ctx, task.ID, mode)
}

// GetTask retrieves a task by ID
func (s *AnalysisTaskService) GetTask(id int64) (*models.AnalysisTask, error) {
	return s.repo.GetByID(id)
}

// ListTasks retrieves all tasks with optional filters
func (s *AnalysisTaskService) ListTasks(skillName string, status string, limit int, offset int) ([]*models.AnalysisTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(skillName, status, limit, offset)
}

// CancelTask stops a pending or running task
func (s *AnalysisTaskService) CancelTask(id int64) error {
	task, err := s.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusRunning {
		return fmt.Errorf("%w (status: %s)", ErrTaskNotRunning, task.Status)
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	return s.repo.MarkAsFailed(id, "Task cancelled by user")
}

// Wait blocks until every task started by CreateTask has returned
func (s *AnalysisTaskService) Wait() {
	s.running.Wait()
}
