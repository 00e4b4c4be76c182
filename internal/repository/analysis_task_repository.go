package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

const taskColumns = `id, skill_name, task_type, status, progress_percent, eta_seconds,
	params_json, total_users, processed_users, failed_users,
	start_time, end_time, result_summary, error_message,
	created_by, created_at, updated_at`

// AnalysisTaskRepository handles database operations for analysis tasks
type AnalysisTaskRepository struct {
	db *sql.DB
}

// NewAnalysisTaskRepository creates a new analysis task repository
func NewAnalysisTaskRepository(db *sql.DB) *AnalysisTaskRepository {
	return &AnalysisTaskRepository{db: db}
}

// Create creates a new analysis task
func (r *AnalysisTaskRepository) Create(task *models.AnalysisTask) error {
	query := `
		INSERT INTO analysis_tasks (
			skill_name, task_type, status, progress_percent, eta_seconds,
			params_json, total_users, processed_users, failed_users,
			start_time, end_time, result_summary, error_message, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		task.SkillName,
		task.TaskType,
		task.Status,
		task.ProgressPercent,
		task.ETASeconds,
		task.ParamsJSON,
		task.TotalUsers,
		task.ProcessedUsers,
		task.FailedUsers,
		task.StartTime,
		task.EndTime,
		task.ResultSummary,
		task.ErrorMessage,
		task.CreatedBy,
	)

	if err != nil {
		return fmt.Errorf("failed to create analysis task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

func scanTask(row rowScanner) (*models.AnalysisTask, error) {
	task := &models.AnalysisTask{}
	err := row.Scan(
		&task.ID,
		&task.SkillName,
		&task.TaskType,
		&task.Status,
		&task.ProgressPercent,
		&task.ETASeconds,
		&task.ParamsJSON,
		&task.TotalUsers,
		&task.ProcessedUsers,
		&task.FailedUsers,
		&task.StartTime,
		&task.EndTime,
		&task.ResultSummary,
		&task.ErrorMessage,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	return task, err
}

// GetByID retrieves an analysis task by ID
func (r *AnalysisTaskRepository) GetByID(id int64) (*models.AnalysisTask, error) {
	task, err := scanTask(r.db.QueryRow("SELECT "+taskColumns+" FROM analysis_tasks WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis task not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis task: %w", err)
	}

	return task, nil
}

// List retrieves analysis tasks with optional filters
func (r *AnalysisTaskRepository) List(skillName string, status string, limit int, offset int) ([]*models.AnalysisTask, error) {
	query := "SELECT " + taskColumns + " FROM analysis_tasks WHERE 1=1"

	args := []interface{}{}
	if skillName != "" {
		query += " AND skill_name = ?"
		args = append(args, skillName)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.AnalysisTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// MarkAsFailed marks a task as failed with an error message
func (r *AnalysisTaskRepository) MarkAsFailed(id int64, errorMessage string) error {
	now := time.Now().Unix()
	query := `
		UPDATE analysis_tasks
		SET status = ?, end_time = ?, error_message = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query, models.TaskStatusFailed, now, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark task as failed: %w", err)
	}

	return nil
}

// CountUsers counts the users that have snapshots
func (r *AnalysisTaskRepository) CountUsers() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(DISTINCT user_id) FROM activity_snapshots`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

// CountUnprocessedUsers counts the users that have snapshots but no trips yet
func (r *AnalysisTaskRepository) CountUnprocessedUsers() (int, error) {
	query := `
		SELECT COUNT(DISTINCT s.user_id)
		FROM activity_snapshots s
		WHERE NOT EXISTS (SELECT 1 FROM trips t WHERE t.user_id = s.user_id)
	`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unprocessed users: %w", err)
	}

	return count, nil
}
