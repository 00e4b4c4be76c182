package behavior

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

func TestMergeStillEvents(t *testing.T) {
	const t0 = int64(1_565_382_582_198)
	region := int64(7)

	t.Run("splices short still between matching trips", func(t *testing.T) {
		car1 := tripBetween(models.ActivityInVehicle, t0-600_000, t0, home, away)
		still := tripBetween(models.ActivityStill, t0, t0+30_000, away, away)
		car2 := tripBetween(models.ActivityInVehicle, t0+35_000, t0+900_000, away, home)
		car2.RegionID = &region

		bucket, merged := MergeStillEvents([]*models.Trip{car1, still, car2}, 2*time.Minute)
		require.True(t, merged)
		require.Len(t, bucket, 1)

		got := bucket[0]
		assert.Equal(t, models.ActivityInVehicle, got.Activity)
		assert.Equal(t, t0-600_000, *got.Origin.ActivityMillis)
		assert.Equal(t, t0+900_000, *got.Destination.ActivityMillis)
		require.NotNil(t, got.DurationMinutes)
		assert.Equal(t, 25.0, *got.DurationMinutes)
		require.NotNil(t, got.DistanceMeters)
		assert.InDelta(t, 0, *got.DistanceMeters, 1e-6)
		assert.Equal(t, &region, got.RegionID)

		// the first trip itself is left untouched
		assert.Equal(t, t0, *car1.Destination.ActivityMillis)
	})

	t.Run("gap over threshold", func(t *testing.T) {
		car1 := tripBetween(models.ActivityInVehicle, t0-600_000, t0, home, away)
		still := tripBetween(models.ActivityStill, t0, t0+100_000, away, away)
		car2 := tripBetween(models.ActivityInVehicle, t0+120_000, t0+900_000, away, home)

		bucket, merged := MergeStillEvents([]*models.Trip{car1, still, car2}, 2*time.Minute)
		assert.False(t, merged)
		assert.Len(t, bucket, 3)
	})

	t.Run("labels must overlap", func(t *testing.T) {
		car := tripBetween(models.ActivityInVehicle, t0-600_000, t0, home, away)
		still := tripBetween(models.ActivityStill, t0, t0+30_000, away, away)
		bike := tripBetween(models.ActivityOnBicycle, t0+35_000, t0+900_000, away, home)

		_, merged := MergeStillEvents([]*models.Trip{car, still, bike}, 2*time.Minute)
		assert.False(t, merged)
	})

	t.Run("substring labels take walking/running", func(t *testing.T) {
		walk := tripBetween(models.ActivityWalking, t0-600_000, t0, home, away)
		still := tripBetween(models.ActivityStill, t0, t0+30_000, away, away)
		wr := tripBetween(models.ActivityWalkingRunning, t0+35_000, t0+900_000, away, home)

		bucket, merged := MergeStillEvents([]*models.Trip{walk, still, wr}, 2*time.Minute)
		require.True(t, merged)
		assert.Equal(t, models.ActivityWalkingRunning, bucket[0].Activity)
	})

	t.Run("tail must not be still", func(t *testing.T) {
		a := tripBetween(models.ActivityStill, t0-600_000, t0, home, away)
		b := tripBetween(models.ActivityStill, t0, t0+30_000, away, away)
		c := tripBetween(models.ActivityStill, t0+35_000, t0+900_000, away, home)

		_, merged := MergeStillEvents([]*models.Trip{a, b, c}, 2*time.Minute)
		assert.False(t, merged)
	})

	t.Run("too short", func(t *testing.T) {
		a := tripBetween(models.ActivityInVehicle, t0-600_000, t0, home, away)
		_, merged := MergeStillEvents([]*models.Trip{a}, 2*time.Minute)
		assert.False(t, merged)
	})
}

func TestMergeWalkingRunning(t *testing.T) {
	const t0 = int64(1_565_382_582_198)

	tests := []struct {
		name   string
		first  string
		second string
		gap    int64
		merged bool
	}{
		{"walking then running within threshold", models.ActivityWalking, models.ActivityRunning, 90_000, true},
		{"walking then running over threshold", models.ActivityWalking, models.ActivityRunning, 150_000, false},
		{"merged then walking", models.ActivityWalkingRunning, models.ActivityWalking, 10_000, true},
		{"walking then merged", models.ActivityWalking, models.ActivityWalkingRunning, 10_000, true},
		{"two merged trips", models.ActivityWalkingRunning, models.ActivityWalkingRunning, 10_000, false},
		{"vehicle then walking", models.ActivityInVehicle, models.ActivityWalking, 10_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := tripBetween(tt.first, t0-300_000, t0, home, away)
			second := tripBetween(tt.second, t0+tt.gap, t0+tt.gap+300_000, away, home)

			bucket, merged := MergeWalkingRunning([]*models.Trip{first, second}, 2*time.Minute)
			assert.Equal(t, tt.merged, merged)
			if !tt.merged {
				assert.Len(t, bucket, 2)
				return
			}
			require.Len(t, bucket, 1)
			assert.Equal(t, models.ActivityWalkingRunning, bucket[0].Activity)
			assert.Equal(t, t0+tt.gap+300_000, *bucket[0].Destination.ActivityMillis)
		})
	}

	t.Run("missing times never merge", func(t *testing.T) {
		first := tripBetween(models.ActivityWalking, t0-300_000, t0, home, away)
		second := tripBetween(models.ActivityRunning, t0+1000, t0+300_000, away, home)
		second.Origin.ActivityMillis = nil

		_, merged := MergeWalkingRunning([]*models.Trip{first, second}, 2*time.Minute)
		assert.False(t, merged)
	})
}
