package behavior

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/config"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// Sink receives the trips of each flushed day, in order
type Sink interface {
	Emit(ctx context.Context, trips []models.Trip) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, trips []models.Trip) error

// Emit calls f
func (f SinkFunc) Emit(ctx context.Context, trips []models.Trip) error {
	return f(ctx, trips)
}

type segmentState int

const (
	stateIdle segmentState = iota
	statePendingExit
)

// userRun is the mutable state of one user's traversal
type userRun struct {
	userID  string
	runID   string
	logger  *zap.Logger
	devices []models.DeviceSnapshot

	state   segmentState
	pending *models.Trip
	bucket  []*models.Trip

	trips sequence
	tours sequence
	stats Stats
}

// Processor turns a user's snapshot history into trips.
// A Processor holds only read-only configuration and may serve many users concurrently.
type Processor struct {
	opts     config.ProcessingOptions
	resolver spatial.TimezoneResolver
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a processor
func NewProcessor(opts config.ProcessingOptions, resolver spatial.TimezoneResolver, sink Sink, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		opts:     opts,
		resolver: resolver,
		sink:     sink,
		logger:   logger.Named("segmenter"),
		now:      time.Now,
	}
}

// ProcessUser segments one user's snapshots, which must be sorted by event time.
// devices must be sorted ascending by Timestamp. Only sink failures and
// cancellation are returned as errors; bad input is skipped and counted.
func (p *Processor) ProcessUser(ctx context.Context, userID, runID string, snapshots []models.RawSnapshot, devices []models.DeviceSnapshot) (Stats, error) {
	run := &userRun{
		userID:  userID,
		runID:   runID,
		logger:  p.logger.With(zap.String("user_id", userID), zap.String("run_id", runID)),
		devices: devices,
	}

	for i := range snapshots {
		if err := ctx.Err(); err != nil {
			return run.stats, err
		}
		if err := p.step(ctx, run, snapshots[i]); err != nil {
			return run.stats, err
		}
	}

	if len(run.bucket) > 0 {
		if err := p.flush(ctx, run); err != nil {
			return run.stats, err
		}
	}

	run.logger.Debug("user processed",
		zap.Int("snapshots", run.stats.Snapshots),
		zap.Int("trips_emitted", run.stats.TripsEmitted))
	return run.stats, nil
}

// step advances the state machine by one snapshot
func (p *Processor) step(ctx context.Context, run *userRun, s models.RawSnapshot) error {
	run.stats.Snapshots++
	if s.Malformed() {
		p.skip(run, SkipMalformedSnapshot, zap.String("snapshot_id", s.ID))
		return nil
	}

	if run.state == statePendingExit {
		exit, ok := s.FirstOfKind(models.TransitionExit)
		if ok && exit.Label == run.pending.Activity {
			if err := p.completeTrip(ctx, run, s); err != nil {
				return err
			}
		} else {
			p.skip(run, SkipUnmatchedTransition,
				zap.String("snapshot_id", s.ID),
				zap.String("pending_activity", run.pending.Activity))
		}
		run.pending = nil
		run.state = stateIdle
	}

	if enter, ok := s.FirstOfKind(models.TransitionEnter); ok {
		run.pending = OpenTrip(run.userID, enter, s, p.now())
		run.pending.RunID = run.runID
		run.state = statePendingExit
		if !complete(run.pending.Origin) {
			p.skip(run, SkipMissingData, zap.String("snapshot_id", s.ID), zap.String("end", "origin"))
		}
	}
	return nil
}

func (p *Processor) completeTrip(ctx context.Context, run *userRun, s models.RawSnapshot) error {
	trip := run.pending
	dest := NewEndpoint(s, p.now())
	trip.Destination = &dest
	if !complete(dest) {
		p.skip(run, SkipMissingData, zap.String("snapshot_id", s.ID), zap.String("end", "destination"))
	}

	if err := UpdateDerived(trip); err != nil {
		if errors.Is(err, ErrNegativeDuration) {
			run.stats.record(SkipNegativeDuration)
			run.logger.Warn("rejecting trip with negative duration",
				zap.String("snapshot_id", s.ID),
				zap.String("activity", trip.Activity),
				zap.Int64p("origin_ms", trip.Origin.ActivityMillis),
				zap.Int64p("destination_ms", dest.ActivityMillis))
			return nil
		}
		return err
	}

	if dest.ActivityMillis != nil {
		if d, ok := ClosestDeviceSnapshot(run.devices, *dest.ActivityMillis); ok {
			ApplyDeviceState(trip, d)
		}
	}

	trip.TripID = run.trips.Next()
	run.stats.TripsCompleted++
	return p.appendTrip(ctx, run, trip)
}

// appendTrip adds a completed trip to the day bucket, flushing first when it starts a new day
func (p *Processor) appendTrip(ctx context.Context, run *userRun, trip *models.Trip) error {
	if len(run.bucket) > 0 && !IsSameLocalDay(run.bucket[0], trip, p.opts.DayStartOffsetHours, p.resolver) {
		if err := p.flush(ctx, run); err != nil {
			return err
		}
	}
	run.bucket = append(run.bucket, trip)

	var merged bool
	if p.opts.MergeStillEvents {
		if run.bucket, merged = MergeStillEvents(run.bucket, p.opts.StillMergeThreshold()); merged {
			run.stats.StillMerges++
		}
	}
	if p.opts.MergeWalkingRunning {
		if run.bucket, merged = MergeWalkingRunning(run.bucket, p.opts.WalkingRunningMergeThreshold()); merged {
			run.stats.WalkingRunningMerges++
		}
	}
	return nil
}

// flush assigns tours to the open bucket and hands its exportable trips to the sink
func (p *Processor) flush(ctx context.Context, run *userRun) error {
	AssignTours(run.bucket, &run.tours)

	trips := make([]models.Trip, 0, len(run.bucket))
	for _, trip := range run.bucket {
		if !IsAllowedToExport(trip, p.opts.ExcludedRegionIDs) {
			run.stats.TripsExcluded++
			continue
		}
		trips = append(trips, *trip)
	}
	run.bucket = nil
	run.stats.DayBuckets++

	if len(trips) == 0 {
		return nil
	}
	if err := p.sink.Emit(ctx, trips); err != nil {
		run.logger.Error("failed to emit trips", zap.Int("trips", len(trips)), zap.Error(err))
		return fmt.Errorf("failed to emit trips for user %s: %w", run.userID, err)
	}
	run.stats.TripsEmitted += len(trips)
	return nil
}

func (p *Processor) skip(run *userRun, reason SkipReason, fields ...zap.Field) {
	run.stats.record(reason)
	run.logger.Debug("skipped input", append(fields, zap.Stringer("reason", reason))...)
}
