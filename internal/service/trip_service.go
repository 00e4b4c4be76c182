package service

import (
	"sort"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/repository"
	"github.com/jengzang/travel-behavior-backend-go/internal/stats"
)

// TripService handles business logic for trips
type TripService struct {
	repo *repository.TripRepository
}

// NewTripService creates a new trip service
func NewTripService(repo *repository.TripRepository) *TripService {
	return &TripService{repo: repo}
}

// GetTrips retrieves trips with filtering and pagination
func (s *TripService) GetTrips(filter models.TripFilter) ([]models.Trip, int64, error) {
	return s.repo.GetTrips(filter)
}

// GetTripByID retrieves a single trip by ID
func (s *TripService) GetTripByID(id int64) (*models.Trip, error) {
	return s.repo.GetTripByID(id)
}

// GetSummary describes a user's trips per activity, busiest activity first
func (s *TripService) GetSummary(userID string) (*models.TripSummary, error) {
	measures, err := s.repo.GetTripMeasures(userID)
	if err != nil {
		return nil, err
	}

	type sample struct {
		trips     int
		durations []float64
		distances []float64
	}
	byActivity := make(map[string]*sample)
	for _, m := range measures {
		smp, ok := byActivity[m.Activity]
		if !ok {
			smp = &sample{}
			byActivity[m.Activity] = smp
		}
		smp.trips++
		if m.DurationMinutes != nil {
			smp.durations = append(smp.durations, *m.DurationMinutes)
		}
		if m.DistanceMeters != nil {
			smp.distances = append(smp.distances, *m.DistanceMeters)
		}
	}

	summary := &models.TripSummary{
		UserID:     userID,
		Trips:      len(measures),
		Activities: make([]models.ActivitySummary, 0, len(byActivity)),
	}
	for activity, smp := range byActivity {
		summary.Activities = append(summary.Activities, models.ActivitySummary{
			Activity:        activity,
			Trips:           smp.trips,
			DurationMinutes: stats.Describe(smp.durations),
			DistanceMeters:  stats.Describe(smp.distances),
		})
	}
	sort.Slice(summary.Activities, func(i, j int) bool {
		a, b := summary.Activities[i], summary.Activities[j]
		if a.Trips != b.Trips {
			return a.Trips > b.Trips
		}
		return a.Activity < b.Activity
	})

	return summary, nil
}
