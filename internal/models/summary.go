package models

import "github.com/jengzang/travel-behavior-backend-go/internal/stats"

// ActivitySummary describes a user's trips of one activity
type ActivitySummary struct {
	Activity        string             `json:"activity"`
	Trips           int                `json:"trips"`
	DurationMinutes stats.Distribution `json:"duration_minutes"`
	DistanceMeters  stats.Distribution `json:"distance_meters"`
}

// TripSummary describes all of a user's stored trips
type TripSummary struct {
	UserID     string            `json:"user_id"`
	Trips      int               `json:"trips"`
	Activities []ActivitySummary `json:"activities"`
}
