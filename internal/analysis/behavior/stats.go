package behavior

// SkipReason classifies input the segmenter recovered from locally
type SkipReason int

// SkipReason constants
const (
	SkipMissingData SkipReason = iota
	SkipUnmatchedTransition
	SkipMalformedSnapshot
	SkipNegativeDuration
)

func (r SkipReason) String() string {
	switch r {
	case SkipMissingData:
		return "missing_data"
	case SkipUnmatchedTransition:
		return "unmatched_transition"
	case SkipMalformedSnapshot:
		return "malformed_snapshot"
	case SkipNegativeDuration:
		return "negative_duration"
	default:
		return "unknown"
	}
}

// Stats summarizes one user's run
type Stats struct {
	Snapshots            int `json:"snapshots"`
	MalformedSkipped     int `json:"malformed_skipped"`
	MissingData          int `json:"missing_data"`
	UnmatchedTransitions int `json:"unmatched_transitions"`
	NegativeDurations    int `json:"negative_durations"`
	TripsCompleted       int `json:"trips_completed"`
	StillMerges          int `json:"still_merges"`
	WalkingRunningMerges int `json:"walking_running_merges"`
	DayBuckets           int `json:"day_buckets"`
	TripsEmitted         int `json:"trips_emitted"`
	TripsExcluded        int `json:"trips_excluded"`
}

func (s *Stats) record(reason SkipReason) {
	switch reason {
	case SkipMissingData:
		s.MissingData++
	case SkipUnmatchedTransition:
		s.UnmatchedTransitions++
	case SkipMalformedSnapshot:
		s.MalformedSkipped++
	case SkipNegativeDuration:
		s.NegativeDurations++
	}
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Snapshots += o.Snapshots
	s.MalformedSkipped += o.MalformedSkipped
	s.MissingData += o.MissingData
	s.UnmatchedTransitions += o.UnmatchedTransitions
	s.NegativeDurations += o.NegativeDurations
	s.TripsCompleted += o.TripsCompleted
	s.StillMerges += o.StillMerges
	s.WalkingRunningMerges += o.WalkingRunningMerges
	s.DayBuckets += o.DayBuckets
	s.TripsEmitted += o.TripsEmitted
	s.TripsExcluded += o.TripsExcluded
}
