package behavior

import (
	"errors"
	"time"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// ErrNegativeDuration marks a trip whose EXIT precedes its ENTER
var ErrNegativeDuration = errors.New("trip ends before it starts")

// NewEndpoint resolves the activity time and best location of one trip end
func NewEndpoint(s models.RawSnapshot, now time.Time) models.Endpoint {
	ep := models.Endpoint{
		ActivityMillis: BestEventTime(s),
		Providers:      LocationsByProvider(s.Locations),
	}
	ep.Location = BestLocation(s.Locations, ep.ActivityMillis, now)

	if ep.ActivityMillis != nil && ep.Location != nil {
		diff := millisToMinutes(absMillis(*ep.ActivityMillis - ep.Location.TimeMillis))
		ep.TimeDiffMinutes = &diff
	}
	return ep
}

// complete reports whether the endpoint has both a time and a location
func complete(ep models.Endpoint) bool {
	return ep.ActivityMillis != nil && ep.Location != nil
}

// OpenTrip starts a trip from an ENTER event
func OpenTrip(userID string, enter models.ActivityEvent, s models.RawSnapshot, now time.Time) *models.Trip {
	trip := &models.Trip{
		UserID:   userID,
		Activity: enter.Label,
		Origin:   NewEndpoint(s, now),
	}
	if enter.Confidence != nil {
		c := float64(*enter.Confidence) / 100
		trip.Confidence = &c
	}
	return trip
}

// UpdateDerived recomputes duration and distance from the trip's two ends.
// Fields stay nil when either end lacks the data.
func UpdateDerived(trip *models.Trip) error {
	trip.DurationMinutes = nil
	trip.DistanceMeters = nil
	if trip.Destination == nil {
		return nil
	}

	start, end := trip.Origin.ActivityMillis, trip.Destination.ActivityMillis
	if start != nil && end != nil {
		diff := *end - *start
		if diff < 0 {
			return ErrNegativeDuration
		}
		minutes := millisToMinutes(diff)
		trip.DurationMinutes = &minutes
	}

	from, to := trip.Origin.Location, trip.Destination.Location
	if from != nil && to != nil {
		d := spatial.GeodesicDistance(from.Lat, from.Lon, to.Lat, to.Lon)
		trip.DistanceMeters = &d
	}
	return nil
}

// IsAllowedToExport reports whether the trip's region may be written out.
// Trips without a region are always exported.
func IsAllowedToExport(trip *models.Trip, excludedRegionIDs []int64) bool {
	if trip.RegionID == nil {
		return true
	}
	for _, id := range excludedRegionIDs {
		if *trip.RegionID == id {
			return false
		}
	}
	return true
}
