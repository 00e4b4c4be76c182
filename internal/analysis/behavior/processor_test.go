package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/config"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// 2019-08-09 12:00 EDT
const noon = int64(1_565_366_400_000)

func newTestProcessor(opts config.ProcessingOptions, sink Sink) *Processor {
	p := NewProcessor(opts, spatial.FixedResolver{Location: mustLoadLocation("America/New_York")}, sink, zap.NewNop())
	p.now = func() time.Time { return time.UnixMilli(noon) }
	return p
}

func minutes(n int64) int64 { return n * 60_000 }

func TestProcessUserSingleTrip(t *testing.T) {
	sink := &recordingSink{}
	p := newTestProcessor(config.DefaultProcessingOptions(), sink)

	region := int64(2)
	yes := true
	devices := []models.DeviceSnapshot{
		{Timestamp: noon - minutes(60), RegionID: &region},
		{Timestamp: noon + minutes(5), TalkBackEnabled: &yes},
		{Timestamp: noon + minutes(60), PowerSaveModeEnabled: &yes},
	}

	stats, err := p.ProcessUser(context.Background(), "user-1", "run-1", []models.RawSnapshot{
		snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
		snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle)),
	}, devices)
	require.NoError(t, err)

	trips := sink.all()
	require.Len(t, trips, 1)
	trip := trips[0]

	assert.Equal(t, "user-1", trip.UserID)
	assert.Equal(t, "run-1", trip.RunID)
	assert.Equal(t, int64(0), trip.TripID)
	assert.Equal(t, models.ActivityInVehicle, trip.Activity)
	require.NotNil(t, trip.Confidence)
	assert.InDelta(t, 0.8, *trip.Confidence, 1e-9)

	require.NotNil(t, trip.Destination)
	require.NotNil(t, trip.DurationMinutes)
	assert.Equal(t, 20.0, *trip.DurationMinutes)
	require.NotNil(t, trip.DistanceMeters)
	assert.InDelta(t, spatial.GeodesicDistance(home.Lat, home.Lon, away.Lat, away.Lon), *trip.DistanceMeters, 1e-6)
	require.NotNil(t, trip.Origin.TimeDiffMinutes)
	assert.Equal(t, 0.0, *trip.Origin.TimeDiffMinutes)
	assert.Contains(t, trip.Destination.Providers, models.ProviderGPS)

	// the device snapshot preceding the trip's end applies; its nil fields are left unset
	assert.Nil(t, trip.RegionID)
	require.NotNil(t, trip.TalkBackEnabled)
	assert.True(t, *trip.TalkBackEnabled)
	assert.Nil(t, trip.PowerSaveModeEnabled)

	require.NotNil(t, trip.TourID)
	assert.Equal(t, 1, *trip.TourIndex)

	assert.Equal(t, 2, stats.Snapshots)
	assert.Equal(t, 1, stats.TripsCompleted)
	assert.Equal(t, 1, stats.TripsEmitted)
	assert.Equal(t, 1, stats.DayBuckets)
}

func TestProcessUserTransitions(t *testing.T) {
	t.Run("exit with another label discards the pending trip", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{
			snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
			snapshotAt("b", noon+minutes(20), away, exit(models.ActivityWalking)),
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, sink.all())
		assert.Equal(t, 1, stats.UnmatchedTransitions)
	})

	t.Run("snapshot without exit discards the pending trip", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{
			snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
			snapshotAt("b", noon+minutes(5), away, enter(models.ActivityWalking)),
			snapshotAt("c", noon+minutes(20), away, exit(models.ActivityInVehicle)),
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, sink.all())
		assert.Equal(t, 2, stats.UnmatchedTransitions)
	})

	t.Run("exit and enter in the same snapshot chain trips", func(t *testing.T) {
		sink := &recordingSink{}
		opts := config.DefaultProcessingOptions()
		p := newTestProcessor(opts, sink)

		_, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{
			snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
			snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle), enter(models.ActivityOnBicycle)),
			snapshotAt("c", noon+minutes(50), home, exit(models.ActivityOnBicycle)),
		}, nil)
		require.NoError(t, err)

		trips := sink.all()
		require.Len(t, trips, 2)
		assert.Equal(t, models.ActivityInVehicle, trips[0].Activity)
		assert.Equal(t, models.ActivityOnBicycle, trips[1].Activity)
		assert.Equal(t, int64(0), trips[0].TripID)
		assert.Equal(t, int64(1), trips[1].TripID)
		assert.Equal(t, noon+minutes(20), *trips[1].Origin.ActivityMillis)
	})

	t.Run("malformed snapshots are skipped", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{
			snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
			{ID: "broken", UserID: "user-1"},
			snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle)),
		}, nil)
		require.NoError(t, err)
		assert.Len(t, sink.all(), 1)
		assert.Equal(t, 1, stats.MalformedSkipped)
		assert.Equal(t, 3, stats.Snapshots)
	})

	t.Run("negative duration is rejected", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{
			snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
			snapshotAt("b", noon-minutes(20), away, exit(models.ActivityInVehicle)),
			snapshotAt("c", noon+minutes(30), away, enter(models.ActivityWalking)),
			snapshotAt("d", noon+minutes(40), home, exit(models.ActivityWalking)),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.NegativeDurations)

		trips := sink.all()
		require.Len(t, trips, 1)
		assert.Equal(t, int64(0), trips[0].TripID)
		assert.Equal(t, models.ActivityWalking, trips[0].Activity)
	})

	t.Run("snapshots without locations leave fields unset", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		first := snapshotAt("a", noon, home, enter(models.ActivityInVehicle))
		first.Locations = nil
		second := snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle))

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{first, second}, nil)
		require.NoError(t, err)

		trips := sink.all()
		require.Len(t, trips, 1)
		assert.Nil(t, trips[0].Origin.Location)
		assert.Nil(t, trips[0].DistanceMeters)
		assert.NotNil(t, trips[0].DurationMinutes)
		assert.Equal(t, 1, stats.MissingData)
	})
}

func TestProcessUserMerges(t *testing.T) {
	still := []models.RawSnapshot{
		snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
		snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle), enter(models.ActivityStill)),
		snapshotAt("c", noon+minutes(20)+30_000, away, exit(models.ActivityStill)),
		snapshotAt("d", noon+minutes(20)+35_000, away, enter(models.ActivityInVehicle)),
		snapshotAt("e", noon+minutes(40), home, exit(models.ActivityInVehicle)),
	}

	t.Run("still merge", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", still, nil)
		require.NoError(t, err)

		trips := sink.all()
		require.Len(t, trips, 1)
		assert.Equal(t, models.ActivityInVehicle, trips[0].Activity)
		assert.Equal(t, noon, *trips[0].Origin.ActivityMillis)
		assert.Equal(t, noon+minutes(40), *trips[0].Destination.ActivityMillis)
		assert.Equal(t, 40.0, *trips[0].DurationMinutes)
		assert.Equal(t, 1, stats.StillMerges)
		assert.Equal(t, 3, stats.TripsCompleted)
	})

	t.Run("still merge disabled", func(t *testing.T) {
		sink := &recordingSink{}
		opts := config.DefaultProcessingOptions()
		opts.MergeStillEvents = false
		p := newTestProcessor(opts, sink)

		_, err := p.ProcessUser(context.Background(), "user-1", "run", still, nil)
		require.NoError(t, err)
		assert.Len(t, sink.all(), 3)
	})

	walkRun := []models.RawSnapshot{
		snapshotAt("a", noon, home, enter(models.ActivityWalking)),
		snapshotAt("b", noon+minutes(10), away, exit(models.ActivityWalking)),
		snapshotAt("c", noon+minutes(10)+90_000, away, enter(models.ActivityRunning)),
		snapshotAt("d", noon+minutes(30), home, exit(models.ActivityRunning)),
	}

	t.Run("walking running merge", func(t *testing.T) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)

		stats, err := p.ProcessUser(context.Background(), "user-1", "run", walkRun, nil)
		require.NoError(t, err)

		trips := sink.all()
		require.Len(t, trips, 1)
		assert.Equal(t, models.ActivityWalkingRunning, trips[0].Activity)
		assert.Equal(t, 1, stats.WalkingRunningMerges)
	})

	t.Run("walking running threshold override", func(t *testing.T) {
		sink := &recordingSink{}
		opts := config.DefaultProcessingOptions()
		opts.WalkingRunningMergeThresholdMinutes = 1
		p := newTestProcessor(opts, sink)

		_, err := p.ProcessUser(context.Background(), "user-1", "run", walkRun, nil)
		require.NoError(t, err)
		assert.Len(t, sink.all(), 2)
	})
}

func TestProcessUserDays(t *testing.T) {
	day := int64(24 * 60 * 60 * 1000)
	snapshots := []models.RawSnapshot{
		snapshotAt("a", noon, away, enter(models.ActivityInVehicle)),
		snapshotAt("b", noon+minutes(20), home, exit(models.ActivityInVehicle)),
		snapshotAt("c", noon+minutes(60), home, enter(models.ActivityInVehicle)),
		snapshotAt("d", noon+minutes(80), away, exit(models.ActivityInVehicle)),
		snapshotAt("e", noon+minutes(120), away, enter(models.ActivityInVehicle)),
		snapshotAt("f", noon+minutes(140), home, exit(models.ActivityInVehicle)),
		snapshotAt("g", noon+day, home, enter(models.ActivityOnBicycle)),
		snapshotAt("h", noon+day+minutes(20), away, exit(models.ActivityOnBicycle)),
	}

	run := func(t *testing.T) ([][]models.Trip, Stats) {
		sink := &recordingSink{}
		p := newTestProcessor(config.DefaultProcessingOptions(), sink)
		stats, err := p.ProcessUser(context.Background(), "user-1", "run", snapshots, nil)
		require.NoError(t, err)
		return sink.batches, stats
	}

	batches, stats := run(t)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, 2, stats.DayBuckets)

	// first day: the first arrival is home, leaving and coming back closes one tour
	for i, trip := range batches[0] {
		require.NotNil(t, trip.TourID)
		assert.Equal(t, *batches[0][0].TourID, *trip.TourID)
		assert.Equal(t, i+1, *trip.TourIndex)
	}
	require.NotNil(t, batches[1][0].TourID)
	assert.Equal(t, *batches[0][0].TourID+1, *batches[1][0].TourID)

	var last int64 = -1
	for _, batch := range batches {
		for _, trip := range batch {
			assert.Greater(t, trip.TripID, last)
			last = trip.TripID
		}
	}

	again, _ := run(t)
	assert.Equal(t, batches, again)
}

func TestProcessUserExport(t *testing.T) {
	york := config.YorkRegionID
	devices := []models.DeviceSnapshot{{Timestamp: noon - minutes(1), RegionID: &york}}

	sink := &recordingSink{}
	p := newTestProcessor(config.DefaultProcessingOptions(), sink)

	stats, err := p.ProcessUser(context.Background(), "user-1", "run", []models.RawSnapshot{
		snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
		snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle)),
	}, devices)
	require.NoError(t, err)
	assert.Empty(t, sink.batches)
	assert.Equal(t, 1, stats.TripsExcluded)
	assert.Equal(t, 0, stats.TripsEmitted)
}

func TestProcessUserErrors(t *testing.T) {
	snapshots := []models.RawSnapshot{
		snapshotAt("a", noon, home, enter(models.ActivityInVehicle)),
		snapshotAt("b", noon+minutes(20), away, exit(models.ActivityInVehicle)),
	}

	t.Run("sink failure", func(t *testing.T) {
		boom := errors.New("disk full")
		p := newTestProcessor(config.DefaultProcessingOptions(), &recordingSink{err: boom})

		_, err := p.ProcessUser(context.Background(), "user-1", "run", snapshots, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := newTestProcessor(config.DefaultProcessingOptions(), &recordingSink{})

		_, err := p.ProcessUser(ctx, "user-1", "run", snapshots, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsAllowedToExport(t *testing.T) {
	york, other := int64(5), int64(1)
	excluded := []int64{york}

	assert.True(t, IsAllowedToExport(&models.Trip{}, excluded))
	assert.True(t, IsAllowedToExport(&models.Trip{RegionID: &other}, excluded))
	assert.False(t, IsAllowedToExport(&models.Trip{RegionID: &york}, excluded))
	assert.True(t, IsAllowedToExport(&models.Trip{RegionID: &york}, nil))
}
