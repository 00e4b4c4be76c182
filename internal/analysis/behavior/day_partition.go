package behavior

import (
	"time"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// IsSameLocalDay reports whether candidate belongs to the day of first, the first trip
// of the open bucket. Both end times are read in the zone of the candidate's location.
// A candidate on the next calendar day still counts when it falls strictly between
// that midnight and midnight + dayStartOffsetHours.
// Any missing time, missing coordinate or unresolvable zone yields false.
func IsSameLocalDay(first, candidate *models.Trip, dayStartOffsetHours int, resolver spatial.TimezoneResolver) bool {
	firstEnd, ok := first.EndMillis()
	if !ok {
		return false
	}
	candidateEnd, ok := candidate.EndMillis()
	if !ok {
		return false
	}

	lat, lon, ok := candidate.BestCoordinates()
	if !ok {
		return false
	}
	loc, err := resolver.Resolve(lat, lon)
	if err != nil {
		return false
	}

	firstLocal := time.UnixMilli(firstEnd).In(loc)
	candidateLocal := time.UnixMilli(candidateEnd).In(loc)

	fy, fm, fd := firstLocal.Date()
	cy, cm, cd := candidateLocal.Date()
	if fy == cy && fm == cm && fd == cd {
		return true
	}

	nextMidnight := time.Date(fy, fm, fd+1, 0, 0, 0, 0, loc)
	graceEnd := nextMidnight.Add(time.Duration(dayStartOffsetHours) * time.Hour)
	return candidateLocal.After(nextMidnight) && candidateLocal.Before(graceEnd)
}
