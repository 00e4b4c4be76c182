package behavior

import (
	"context"
	"sync"
	"time"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

var (
	home = models.LocationSample{Lat: 28.0587, Lon: -82.4139, Provider: models.ProviderGPS}
	away = models.LocationSample{Lat: 28.1200, Lon: -82.5000, Provider: models.ProviderGPS}
)

// at returns loc stamped with the given time and a good accuracy
func at(loc models.LocationSample, ms int64) models.LocationSample {
	acc := 10.0
	loc.TimeMillis = ms
	loc.AccuracyMeters = &acc
	return loc
}

// tripBetween builds a completed trip
func tripBetween(label string, startMs, endMs int64, from, to models.LocationSample) *models.Trip {
	origin, dest := at(from, startMs), at(to, endMs)
	trip := &models.Trip{
		Activity:    label,
		Origin:      models.Endpoint{ActivityMillis: &startMs, Location: &origin},
		Destination: &models.Endpoint{ActivityMillis: &endMs, Location: &dest},
	}
	_ = UpdateDerived(trip)
	return trip
}

type event struct {
	kind  models.TransitionKind
	label string
}

func enter(label string) event { return event{models.TransitionEnter, label} }
func exit(label string) event  { return event{models.TransitionExit, label} }

// snapshotAt builds a snapshot whose first activity carries ms and whose only location is loc
func snapshotAt(id string, ms int64, loc models.LocationSample, events ...event) models.RawSnapshot {
	s := models.RawSnapshot{
		ID:         id,
		UserID:     "user-1",
		Activities: []models.ActivityEvent{},
		Locations:  []models.LocationSample{at(loc, ms)},
	}
	for _, e := range events {
		t := ms
		confidence := 80
		s.Activities = append(s.Activities, models.ActivityEvent{
			Kind:            e.kind,
			Label:           e.label,
			Confidence:      &confidence,
			EventTimeMillis: &t,
		})
	}
	return s
}

// recordingSink collects emitted batches
type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.Trip
	err     error
}

func (s *recordingSink) Emit(_ context.Context, trips []models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, trips)
	return nil
}

func (s *recordingSink) all() []models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	var trips []models.Trip
	for _, b := range s.batches {
		trips = append(trips, b...)
	}
	return trips
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
