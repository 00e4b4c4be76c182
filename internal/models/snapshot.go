package models

import "math"

// TransitionKind is the direction of an activity transition event
type TransitionKind string

// TransitionKind constants
const (
	TransitionEnter TransitionKind = "ENTER"
	TransitionExit  TransitionKind = "EXIT"
)

// Activity labels produced by the upstream activity recognition
const (
	ActivityStill          = "STILL"
	ActivityWalking        = "WALKING"
	ActivityRunning        = "RUNNING"
	ActivityWalkingRunning = "WALKING/RUNNING"
	ActivityInVehicle      = "IN_VEHICLE"
	ActivityOnBicycle      = "ON_BICYCLE"
)

// Location providers reported by the device
const (
	ProviderFused   = "fused"
	ProviderGPS     = "gps"
	ProviderNetwork = "network"
)

// ActivityEvent is one activity transition reported by the device
type ActivityEvent struct {
	Kind            TransitionKind `json:"kind"`
	Label           string         `json:"label"`                   // e.g. IN_VEHICLE, WALKING
	Confidence      *int           `json:"confidence,omitempty"`    // 0-100
	EventTimeMillis *int64         `json:"event_time_ms,omitempty"` // Unix millis
}

// LocationSample is a single location fix attached to a snapshot
type LocationSample struct {
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	TimeMillis     int64    `json:"time_ms"`              // Unix millis
	AccuracyMeters *float64 `json:"accuracy_m,omitempty"` // horizontal accuracy
	Provider       string   `json:"provider,omitempty"`   // fused, gps, network
}

// Accuracy returns the horizontal accuracy, or +Inf when the device did not report one
func (l LocationSample) Accuracy() float64 {
	if l.AccuracyMeters == nil {
		return math.Inf(1)
	}
	return *l.AccuracyMeters
}

// RawSnapshot is one persisted record of activity transitions and location samples.
// A nil Activities slice marks a malformed record.
type RawSnapshot struct {
	ID         string           `json:"id" db:"id"`
	UserID     string           `json:"user_id" db:"user_id"`
	Activities []ActivityEvent  `json:"activities" db:"activities_json"`
	Locations  []LocationSample `json:"locations,omitempty" db:"locations_json"`
}

// Malformed reports whether the snapshot carries no activity list at all
func (s RawSnapshot) Malformed() bool {
	return s.Activities == nil
}

// EventTime returns the event time of the first activity, the snapshot's best timestamp
func (s RawSnapshot) EventTime() *int64 {
	if len(s.Activities) == 0 {
		return nil
	}
	return s.Activities[0].EventTimeMillis
}

// FirstOfKind returns the first activity event of the given kind
func (s RawSnapshot) FirstOfKind(kind TransitionKind) (ActivityEvent, bool) {
	for _, a := range s.Activities {
		if a.Kind == kind {
			return a, true
		}
	}
	return ActivityEvent{}, false
}

// SnapshotsResponse represents the ingest result for a batch of snapshots
type SnapshotsResponse struct {
	UserID   string `json:"user_id"`
	Inserted int    `json:"inserted"`
}
