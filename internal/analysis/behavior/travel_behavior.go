package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/analysis"
	"github.com/jengzang/travel-behavior-backend-go/internal/config"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/repository"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// SkillName is the registry name of the travel behavior analyzer
const SkillName = "travel_behavior"

func init() {
	analysis.RegisterAnalyzer(SkillName, NewTravelBehaviorAnalyzer)
}

// SnapshotSource supplies a user's raw history
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context, userID string, dr models.DateRange) ([]models.RawSnapshot, error)
	FetchDeviceSnapshots(ctx context.Context, userID string) ([]models.DeviceSnapshot, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// TripStore persists emitted trips
type TripStore interface {
	Sink
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// TravelBehaviorAnalyzer segments every selected user's snapshots into trips
// Skill: travel_behavior
type TravelBehaviorAnalyzer struct {
	*analysis.BatchAnalyzer
	snapshots SnapshotSource
	trips     TripStore
	processor *Processor
}

// Summary is stored as the task result
type Summary struct {
	RunID        string `json:"run_id"`
	Mode         string `json:"mode"`
	Users        int    `json:"users"`
	FailedUsers  int    `json:"failed_users"`
	SkippedUsers int    `json:"skipped_users"`
	Stats        Stats  `json:"stats"`
}

// NewTravelBehaviorAnalyzer creates the analyzer backed by the sqlite repositories
func NewTravelBehaviorAnalyzer(deps analysis.Dependencies) analysis.Analyzer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewTravelBehaviorAnalyzerWith(deps,
		repository.NewSnapshotRepository(deps.DB, logger),
		repository.NewTripRepository(deps.DB))
}

// NewTravelBehaviorAnalyzerWith creates the analyzer over the given source and store
func NewTravelBehaviorAnalyzerWith(deps analysis.Dependencies, snapshots SnapshotSource, trips TripStore) *TravelBehaviorAnalyzer {
	opts := config.DefaultProcessingOptions()
	if deps.Config != nil {
		opts = deps.Config.Processing
	}

	resolver := deps.Resolver
	if resolver == nil {
		resolver = spatial.FixedResolver{Location: time.UTC}
	}

	batch := analysis.NewBatchAnalyzer(deps, SkillName)
	return &TravelBehaviorAnalyzer{
		BatchAnalyzer: batch,
		snapshots:     snapshots,
		trips:         trips,
		processor:     NewProcessor(opts, resolver, trips, batch.Logger),
	}
}

// Analyze runs the segmenter for the task's users. In full mode the users'
// existing trips are deleted first; in incremental mode users that already
// have trips are skipped.
func (a *TravelBehaviorAnalyzer) Analyze(ctx context.Context, taskID int64, mode string) error {
	if err := a.MarkTaskAsRunning(ctx, taskID); err != nil {
		return fmt.Errorf("failed to mark task as running: %w", err)
	}

	summary, err := a.run(ctx, taskID, mode)
	if err != nil {
		// the caller's context may already be done
		if markErr := a.MarkTaskAsFailed(context.Background(), taskID, err.Error()); markErr != nil {
			a.Logger.Error("failed to mark task as failed", zap.Int64("task_id", taskID), zap.Error(markErr))
		}
		return err
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := a.MarkTaskAsCompleted(ctx, taskID, string(summaryJSON)); err != nil {
		return fmt.Errorf("failed to mark task as completed: %w", err)
	}

	a.Logger.Info("analysis completed",
		zap.Int64("task_id", taskID),
		zap.String("run_id", summary.RunID),
		zap.Int("users", summary.Users),
		zap.Int("failed_users", summary.FailedUsers),
		zap.Int("trips_emitted", summary.Stats.TripsEmitted))
	return nil
}

func (a *TravelBehaviorAnalyzer) run(ctx context.Context, taskID int64, mode string) (*Summary, error) {
	if mode != analysis.ModeIncremental && mode != analysis.ModeFull {
		return nil, fmt.Errorf("unknown mode: %s", mode)
	}

	params, err := a.taskParams(taskID)
	if err != nil {
		return nil, err
	}

	users := params.UserIDs
	if len(users) == 0 {
		if users, err = a.snapshots.ListUserIDs(ctx); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		RunID: uuid.NewString(),
		Mode:  mode,
		Users: len(users),
	}
	a.Logger.Info("analysis started",
		zap.Int64("task_id", taskID),
		zap.String("run_id", summary.RunID),
		zap.String("mode", mode),
		zap.Int("users", len(users)))

	var mu sync.Mutex
	failed, err := a.ProcessUsers(ctx, taskID, users, func(ctx context.Context, userID string) error {
		stats, skipped, err := a.processUser(ctx, userID, summary.RunID, mode, params.DateRange())

		mu.Lock()
		defer mu.Unlock()
		summary.Stats.Add(stats)
		if skipped {
			summary.SkippedUsers++
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	summary.FailedUsers = failed
	return summary, nil
}

// processUser handles one user. skipped reports an incremental run that found existing trips.
func (a *TravelBehaviorAnalyzer) processUser(ctx context.Context, userID, runID, mode string, dr models.DateRange) (Stats, bool, error) {
	switch mode {
	case analysis.ModeFull:
		if _, err := a.trips.DeleteByUser(ctx, userID); err != nil {
			return Stats{}, false, err
		}
	case analysis.ModeIncremental:
		count, err := a.trips.CountByUser(ctx, userID)
		if err != nil {
			return Stats{}, false, err
		}
		if count > 0 {
			a.Logger.Debug("user already processed", zap.String("user_id", userID), zap.Int64("trips", count))
			return Stats{}, true, nil
		}
	}

	snapshots, err := a.snapshots.FetchSnapshots(ctx, userID, dr)
	if err != nil {
		return Stats{}, false, err
	}
	devices, err := a.snapshots.FetchDeviceSnapshots(ctx, userID)
	if err != nil {
		return Stats{}, false, err
	}

	stats, err := a.processor.ProcessUser(ctx, userID, runID, snapshots, devices)
	return stats, false, err
}

func (a *TravelBehaviorAnalyzer) taskParams(taskID int64) (models.TaskParams, error) {
	var params models.TaskParams

	info, err := a.GetTaskInfo(taskID)
	if err != nil {
		return params, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	if info.ParamsJSON == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(info.ParamsJSON), &params); err != nil {
		return params, fmt.Errorf("invalid params for task %d: %w", taskID, err)
	}
	return params, nil
}
