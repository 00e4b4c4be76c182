package behavior

import (
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// HomeProximityMeters is how close a destination must be to home to close a tour
const HomeProximityMeters = 50.0

// sequence hands out per-user ids starting at 0
type sequence struct {
	next int64
}

func (s *sequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// AssignTours groups a day's trips into tours.
// The first trip's destination is taken as home. Each time a later trip ends within
// HomeProximityMeters of home, the trips from the current start up to it become one
// tour. Trips after the last return home keep no tour.
// Buckets with fewer than two trips give every trip its own tour.
func AssignTours(bucket []*models.Trip, tours *sequence) {
	if len(bucket) < 2 {
		for _, trip := range bucket {
			setTour(trip, tours.Next(), 1)
		}
		return
	}

	home := bucket[0]
	start, tail := 0, 1
	for start < len(bucket) && tail < len(bucket) {
		if endsNearHome(home, bucket[tail]) {
			tourID := tours.Next()
			for i := start; i <= tail; i++ {
				setTour(bucket[i], tourID, i-start+1)
			}
			start = tail + 1
			tail = start + 1
		} else {
			tail++
		}
	}
}

func setTour(trip *models.Trip, tourID int64, index int) {
	trip.TourID = &tourID
	trip.TourIndex = &index
}

// endsNearHome compares destinations; a trip without coordinates is never near home
func endsNearHome(home, trip *models.Trip) bool {
	if home.Destination == nil || home.Destination.Location == nil {
		return false
	}
	if trip.Destination == nil || trip.Destination.Location == nil {
		return false
	}
	h, d := home.Destination.Location, trip.Destination.Location
	return spatial.GeodesicDistance(h.Lat, h.Lon, d.Lat, d.Lon) <= HomeProximityMeters
}
