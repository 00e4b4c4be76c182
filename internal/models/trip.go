package models

import "time"

// Endpoint holds one end (origin or destination) of a trip
type Endpoint struct {
	// Best activity transition time (Unix millis)
	ActivityMillis *int64 `json:"activity_time_ms,omitempty"`

	// Best location sample for this end, nil when the snapshot carried none
	Location *LocationSample `json:"location,omitempty"`

	// |activity time - location time| in minutes
	TimeDiffMinutes *float64 `json:"time_diff_minutes,omitempty"`

	// First sample per provider (fused, gps, network)
	Providers map[string]LocationSample `json:"providers,omitempty"`
}

// Trip represents one ENTER -> EXIT activity interval for a user
type Trip struct {
	ID     int64  `json:"id" db:"id"`
	RunID  string `json:"run_id,omitempty" db:"run_id"`
	UserID string `json:"user_id" db:"user_id"`
	TripID int64  `json:"trip_id" db:"trip_id"` // monotonic per user

	// Activity
	Activity   string   `json:"activity" db:"activity"`              // upstream label, or WALKING/RUNNING after a merge
	Confidence *float64 `json:"confidence,omitempty" db:"confidence"` // 0-1

	// Origin and destination; Destination stays nil until a matching EXIT
	Origin      Endpoint  `json:"origin"`
	Destination *Endpoint `json:"destination,omitempty"`

	// Derived once both ends exist
	DurationMinutes *float64 `json:"duration_minutes,omitempty" db:"duration_minutes"`
	DistanceMeters  *float64 `json:"distance_meters,omitempty" db:"distance_meters"` // geodesic origin -> destination

	// Device state at the end of the trip
	RegionID                     *int64 `json:"region_id,omitempty" db:"region_id"`
	IgnoringBatteryOptimizations *bool  `json:"ignoring_battery_optimizations,omitempty" db:"ignoring_battery_optimizations"`
	PowerSaveModeEnabled         *bool  `json:"power_save_mode_enabled,omitempty" db:"power_save_mode_enabled"`
	TalkBackEnabled              *bool  `json:"talk_back_enabled,omitempty" db:"talk_back_enabled"`

	// Grouping
	ChainID    *int   `json:"chain_id,omitempty" db:"chain_id"`
	ChainIndex *int   `json:"chain_index,omitempty" db:"chain_index"`
	TourID     *int64 `json:"tour_id,omitempty" db:"tour_id"`
	TourIndex  *int   `json:"tour_index,omitempty" db:"tour_index"` // 1-based

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Completed reports whether the trip has a destination
func (t *Trip) Completed() bool {
	return t.Destination != nil
}

// EndMillis returns the trip's best end time: the destination activity time,
// falling back to the destination location time
func (t *Trip) EndMillis() (int64, bool) {
	if t.Destination == nil {
		return 0, false
	}
	if t.Destination.ActivityMillis != nil {
		return *t.Destination.ActivityMillis, true
	}
	if t.Destination.Location != nil {
		return t.Destination.Location.TimeMillis, true
	}
	return 0, false
}

// StartMillis returns the origin activity time, falling back to the origin location time
func (t *Trip) StartMillis() (int64, bool) {
	if t.Origin.ActivityMillis != nil {
		return *t.Origin.ActivityMillis, true
	}
	if t.Origin.Location != nil {
		return t.Origin.Location.TimeMillis, true
	}
	return 0, false
}

// BestCoordinates returns the destination location, else the origin location
func (t *Trip) BestCoordinates() (lat, lon float64, ok bool) {
	if t.Destination != nil && t.Destination.Location != nil {
		return t.Destination.Location.Lat, t.Destination.Location.Lon, true
	}
	if t.Origin.Location != nil {
		return t.Origin.Location.Lat, t.Origin.Location.Lon, true
	}
	return 0, 0, false
}
