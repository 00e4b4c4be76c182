package models

import "time"

// AnalysisTask represents one run of an analysis skill over the snapshot store
type AnalysisTask struct {
	ID int64 `json:"id" db:"id"`

	// Task identification
	SkillName string `json:"skill_name" db:"skill_name"` // Which skill to run
	TaskType  string `json:"task_type" db:"task_type"`   // INCREMENTAL, FULL_RECOMPUTE

	// Status
	Status          string `json:"status" db:"status"` // pending, running, completed, failed
	ProgressPercent int    `json:"progress_percent" db:"progress_percent"`
	ETASeconds      int    `json:"eta_seconds,omitempty" db:"eta_seconds"`

	// Input parameters (TaskParams as JSON)
	ParamsJSON *string `json:"params_json,omitempty" db:"params_json"`

	// Execution info, counted in users
	TotalUsers     int   `json:"total_users,omitempty" db:"total_users"`
	ProcessedUsers int   `json:"processed_users" db:"processed_users"`
	FailedUsers    int   `json:"failed_users" db:"failed_users"`
	StartTime      int64 `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime        int64 `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp

	// Results
	ResultSummary *string `json:"result_summary,omitempty" db:"result_summary"` // JSON object with aggregated stats
	ErrorMessage  *string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskParams are the optional parameters of a travel behavior task
type TaskParams struct {
	UserIDs     []string `json:"user_ids,omitempty"`
	StartMillis int64    `json:"start_ms,omitempty"`
	EndMillis   int64    `json:"end_ms,omitempty"`
}

// DateRange returns the event-time window requested by the task
func (p TaskParams) DateRange() DateRange {
	return DateRange{StartMillis: p.StartMillis, EndMillis: p.EndMillis}
}

// TaskType constants
const (
	TaskTypeIncremental   = "INCREMENTAL"
	TaskTypeFullRecompute = "FULL_RECOMPUTE"
)

// TaskStatus constants
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)
