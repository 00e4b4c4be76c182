package models

// TripFilter represents filter parameters for querying trips
type TripFilter struct {
	UserID    string `form:"userId"`
	Activity  string `form:"activity"`  // STILL, WALKING, IN_VEHICLE, ...
	TourID    int64  `form:"tourId"`
	StartTime int64  `form:"startTime"` // Unix millis, origin activity time
	EndTime   int64  `form:"endTime"`   // Unix millis, destination activity time
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// DateRange limits snapshot queries to an event-time window (Unix millis).
// The range applies only when both bounds are positive.
type DateRange struct {
	StartMillis int64 `json:"start_ms"`
	EndMillis   int64 `json:"end_ms"`
}

// Active reports whether the range restricts anything
func (r DateRange) Active() bool {
	return r.StartMillis > 0 && r.EndMillis > 0
}
