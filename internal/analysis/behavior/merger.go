package behavior

import (
	"strings"
	"time"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

// MergeStillEvents splices a short STILL trip out of the bucket tail.
// When the last three trips are [X, STILL, Y] with overlapping labels and Y starts
// less than threshold after X ends, they are replaced by X extended to Y's destination.
func MergeStillEvents(bucket []*models.Trip, threshold time.Duration) ([]*models.Trip, bool) {
	n := len(bucket)
	if n < 3 {
		return bucket, false
	}

	first, still, last := bucket[n-3], bucket[n-2], bucket[n-1]
	if last.Activity == models.ActivityStill || still.Activity != models.ActivityStill {
		return bucket, false
	}
	if !labelsOverlap(first.Activity, last.Activity) || !withinGap(first, last, threshold) {
		return bucket, false
	}

	merged, ok := mergeTrips(first, last)
	if !ok {
		return bucket, false
	}
	if last.Activity == models.ActivityWalkingRunning {
		merged.Activity = models.ActivityWalkingRunning
	}

	return append(bucket[:n-3], merged), true
}

// MergeWalkingRunning joins two adjacent walking/running trips at the bucket tail
// into one WALKING/RUNNING trip when the gap between them is under threshold
func MergeWalkingRunning(bucket []*models.Trip, threshold time.Duration) ([]*models.Trip, bool) {
	n := len(bucket)
	if n < 2 {
		return bucket, false
	}

	first, second := bucket[n-2], bucket[n-1]
	if !isOnFoot(first.Activity) || !isOnFoot(second.Activity) {
		return bucket, false
	}
	if !isPlainOnFoot(first.Activity) && !isPlainOnFoot(second.Activity) {
		return bucket, false
	}
	if !withinGap(first, second, threshold) {
		return bucket, false
	}

	merged, ok := mergeTrips(first, second)
	if !ok {
		return bucket, false
	}
	merged.Activity = models.ActivityWalkingRunning

	return append(bucket[:n-2], merged), true
}

// mergeTrips returns a copy of first that ends where last ends
func mergeTrips(first, last *models.Trip) (*models.Trip, bool) {
	merged := *first
	if last.Destination != nil {
		dest := *last.Destination
		merged.Destination = &dest
	} else {
		merged.Destination = nil
	}
	merged.RegionID = last.RegionID

	if err := UpdateDerived(&merged); err != nil {
		return nil, false
	}
	return &merged, true
}

// withinGap reports whether second starts less than threshold after first ends
func withinGap(first, second *models.Trip, threshold time.Duration) bool {
	if first.Destination == nil || first.Destination.ActivityMillis == nil || second.Origin.ActivityMillis == nil {
		return false
	}
	return *second.Origin.ActivityMillis-*first.Destination.ActivityMillis < threshold.Milliseconds()
}

func labelsOverlap(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func isOnFoot(label string) bool {
	return isPlainOnFoot(label) || label == models.ActivityWalkingRunning
}

func isPlainOnFoot(label string) bool {
	return label == models.ActivityWalking || label == models.ActivityRunning
}
