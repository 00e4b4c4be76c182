package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchAnalyzer provides base functionality for analyzers that work user by user
type BatchAnalyzer struct {
	*BaseAnalyzer
	Workers int // Number of users processed concurrently
}

// NewBatchAnalyzer creates a new batch analyzer
func NewBatchAnalyzer(deps Dependencies, name string) *BatchAnalyzer {
	workers := 1
	if deps.Config != nil && deps.Config.Workers > 0 {
		workers = deps.Config.Workers
	}

	return &BatchAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer(deps.DB, name, deps.Logger),
		Workers:      workers,
	}
}

// ProcessUsers runs processFunc for every user with at most Workers in flight,
// recording progress on the task after each user.
// A failing user is counted and logged; the others keep running.
// It returns the number of failed users.
func (a *BatchAnalyzer) ProcessUsers(
	ctx context.Context,
	taskID int64,
	userIDs []string,
	processFunc func(ctx context.Context, userID string) error,
) (int, error) {
	total := len(userIDs)
	if err := a.UpdateTaskProgress(ctx, taskID, 0, total, 0, 0); err != nil {
		return 0, err
	}

	var (
		mu        sync.Mutex
		processed int
		failed    int
		startTime = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Workers)

	for _, userID := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			userErr := processFunc(gctx, userID)

			mu.Lock()
			defer mu.Unlock()

			processed++
			if userErr != nil {
				failed++
				a.Logger.Error("user failed", zap.String("user_id", userID), zap.Error(userErr))
			}

			eta := 0
			if elapsed := time.Since(startTime).Seconds(); processed > 0 {
				eta = int(elapsed / float64(processed) * float64(total-processed))
			}

			// progress is best effort
			if err := a.UpdateTaskProgress(gctx, taskID, processed, total, failed, eta); err != nil {
				a.Logger.Warn("failed to update progress", zap.Int64("task_id", taskID), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return failed, err
	}
	return failed, ctx.Err()
}
