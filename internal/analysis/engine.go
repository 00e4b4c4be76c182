package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/config"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// Analysis modes
const (
	ModeIncremental = "incremental"
	ModeFull        = "full"
)

// Analyzer is the interface that all analysis skills must implement
type Analyzer interface {
	// Analyze performs the analysis for a given task
	// taskID: the analysis task ID
	// mode: "incremental" or "full"
	Analyze(ctx context.Context, taskID int64, mode string) error

	// GetProgress returns the current progress of the analysis
	GetProgress(taskID int64) (*Progress, error)

	// GetName returns the name of the analyzer
	GetName() string
}

// Progress represents the progress of an analysis task
type Progress struct {
	Processed  int     // Number of users processed
	Total      int     // Total number of users to process
	Failed     int     // Number of failed users
	Percent    float64 // Progress percentage (0-100)
	ETASeconds int     // Estimated time to completion in seconds
	Message    string  // Optional progress message
}

// Dependencies are the shared services handed to analyzer factories
type Dependencies struct {
	DB       *sql.DB
	Config   *config.Config
	Resolver spatial.TimezoneResolver
	Logger   *zap.Logger
}

// BaseAnalyzer provides common functionality for all analyzers
type BaseAnalyzer struct {
	DB     *sql.DB
	Name   string
	Logger *zap.Logger
}

// NewBaseAnalyzer creates a new base analyzer
func NewBaseAnalyzer(db *sql.DB, name string, logger *zap.Logger) *BaseAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseAnalyzer{
		DB:     db,
		Name:   name,
		Logger: logger.Named(name),
	}
}

// GetName returns the analyzer name
func (a *BaseAnalyzer) GetName() string {
	return a.Name
}

// UpdateTaskProgress updates the progress of an analysis task in the database
func (a *BaseAnalyzer) UpdateTaskProgress(ctx context.Context, taskID int64, processed, total, failed, etaSeconds int) error {
	percent := 0
	if total > 0 {
		percent = processed * 100 / total
	}

	query := `
		UPDATE analysis_tasks
		SET processed_users = ?,
		    total_users = ?,
		    failed_users = ?,
		    progress_percent = ?,
		    eta_seconds = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := a.DB.ExecContext(ctx, query, processed, total, failed, percent, etaSeconds, taskID)
	return err
}

// MarkTaskAsRunning marks a task as running
func (a *BaseAnalyzer) MarkTaskAsRunning(ctx context.Context, taskID int64) error {
	query := `
		UPDATE analysis_tasks
		SET status = 'running',
		    start_time = strftime('%s', 'now'),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := a.DB.ExecContext(ctx, query, taskID)
	return err
}

// MarkTaskAsCompleted marks a task as completed with a JSON summary
func (a *BaseAnalyzer) MarkTaskAsCompleted(ctx context.Context, taskID int64, summary string) error {
	query := `
		UPDATE analysis_tasks
		SET status = 'completed',
		    progress_percent = 100,
		    result_summary = ?,
		    end_time = strftime('%s', 'now'),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := a.DB.ExecContext(ctx, query, summary, taskID)
	return err
}

// MarkTaskAsFailed marks a task as failed with an error message
func (a *BaseAnalyzer) MarkTaskAsFailed(ctx context.Context, taskID int64, errorMsg string) error {
	query := `
		UPDATE analysis_tasks
		SET status = 'failed',
		    error_message = ?,
		    end_time = strftime('%s', 'now'),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := a.DB.ExecContext(ctx, query, errorMsg, taskID)
	return err
}

// GetTaskInfo retrieves task information from the database
func (a *BaseAnalyzer) GetTaskInfo(taskID int64) (*TaskInfo, error) {
	query := `
		SELECT id, skill_name, task_type, status, progress_percent, eta_seconds,
		       total_users, processed_users, failed_users,
		       params_json, start_time, end_time
		FROM analysis_tasks
		WHERE id = ?
	`

	var info TaskInfo
	var params sql.NullString

	err := a.DB.QueryRow(query, taskID).Scan(
		&info.ID, &info.SkillName, &info.TaskType, &info.Status,
		&info.ProgressPercent, &info.ETASeconds, &info.TotalUsers,
		&info.ProcessedUsers, &info.FailedUsers, &params,
		&info.StartTime, &info.EndTime,
	)
	if err != nil {
		return nil, err
	}

	info.ParamsJSON = params.String
	return &info, nil
}

// GetProgress reads the task's progress columns
func (a *BaseAnalyzer) GetProgress(taskID int64) (*Progress, error) {
	info, err := a.GetTaskInfo(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}

	return &Progress{
		Processed:  info.ProcessedUsers,
		Total:      info.TotalUsers,
		Failed:     info.FailedUsers,
		Percent:    float64(info.ProgressPercent),
		ETASeconds: info.ETASeconds,
		Message:    info.Status,
	}, nil
}

// TaskInfo contains information about an analysis task
type TaskInfo struct {
	ID              int64
	SkillName       string
	TaskType        string
	Status          string
	ProgressPercent int
	ETASeconds      int
	TotalUsers      int
	ProcessedUsers  int
	FailedUsers     int
	ParamsJSON      string
	StartTime       int64
	EndTime         int64
}

// AnalyzerFactory is a function that creates an analyzer instance
type AnalyzerFactory func(deps Dependencies) Analyzer

// AnalyzerRegistry maps skill names to analyzer factories
var AnalyzerRegistry = make(map[string]AnalyzerFactory)

// RegisterAnalyzer registers an analyzer factory for a skill name
func RegisterAnalyzer(skillName string, factory AnalyzerFactory) {
	AnalyzerRegistry[skillName] = factory
}

// GetAnalyzer retrieves an analyzer instance for a skill name
func GetAnalyzer(skillName string, deps Dependencies) Analyzer {
	factory, ok := AnalyzerRegistry[skillName]
	if !ok {
		return nil
	}
	return factory(deps)
}

// IsRegistered checks if a skill has an analyzer
func IsRegistered(skillName string) bool {
	_, ok := AnalyzerRegistry[skillName]
	return ok
}

// RegisteredSkills lists the registered skill names in order
func RegisteredSkills() []string {
	skills := make([]string, 0, len(AnalyzerRegistry))
	for name := range AnalyzerRegistry {
		skills = append(skills, name)
	}
	sort.Strings(skills)
	return skills
}
