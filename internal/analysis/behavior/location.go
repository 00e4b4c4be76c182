package behavior

import (
	"sort"
	"time"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

const (
	// AccurateLocationMeters is the horizontal accuracy below which a sample is trusted outright
	AccurateLocationMeters = 50.0

	// StaleLocationAge is how old a kept sample may get before any newer sample replaces it
	StaleLocationAge = 10 * time.Minute
)

// BestEventTime returns the event time of the snapshot's first activity
func BestEventTime(s models.RawSnapshot) *int64 {
	return s.EventTime()
}

// BestLocation picks the sample that best represents the location at ref.
// Samples are ranked by distance in time from ref; the first one more accurate than
// AccurateLocationMeters wins, otherwise the most accurate sample overall.
// Without a reference time it falls back to FoldBestLocation.
func BestLocation(samples []models.LocationSample, ref *int64, now time.Time) *models.LocationSample {
	if len(samples) == 0 {
		return nil
	}
	if ref == nil {
		return FoldBestLocation(samples, now)
	}
	if len(samples) == 1 {
		best := samples[0]
		return &best
	}

	ranked := make([]models.LocationSample, len(samples))
	copy(ranked, samples)
	sort.SliceStable(ranked, func(i, j int) bool {
		return absMillis(ranked[i].TimeMillis-*ref) < absMillis(ranked[j].TimeMillis-*ref)
	})

	for i := range ranked {
		if ranked[i].Accuracy() < AccurateLocationMeters {
			return &ranked[i]
		}
	}

	best := 0
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Accuracy() < ranked[best].Accuracy() {
			best = i
		}
	}
	return &ranked[best]
}

// CompareLocations reports whether candidate should replace current when no reference
// time is known. A newer candidate wins when current is stale or when the candidate
// is accurate.
func CompareLocations(candidate, current *models.LocationSample, now time.Time) bool {
	if candidate == nil {
		return false
	}
	if current == nil {
		return true
	}

	newer := candidate.TimeMillis > current.TimeMillis
	stale := now.UnixMilli()-current.TimeMillis > StaleLocationAge.Milliseconds()

	if stale && newer {
		return true
	}
	if candidate.Accuracy() < AccurateLocationMeters && newer {
		return true
	}
	return false
}

// FoldBestLocation reduces samples to one by repeated CompareLocations
func FoldBestLocation(samples []models.LocationSample, now time.Time) *models.LocationSample {
	var best *models.LocationSample
	for i := range samples {
		if CompareLocations(&samples[i], best, now) {
			best = &samples[i]
		}
	}
	if best == nil {
		return nil
	}
	result := *best
	return &result
}

var endpointProviders = []string{models.ProviderFused, models.ProviderGPS, models.ProviderNetwork}

// LocationsByProvider returns the first sample of each known provider
func LocationsByProvider(samples []models.LocationSample) map[string]models.LocationSample {
	var byProvider map[string]models.LocationSample
	for _, provider := range endpointProviders {
		for _, s := range samples {
			if s.Provider != provider {
				continue
			}
			if byProvider == nil {
				byProvider = make(map[string]models.LocationSample, len(endpointProviders))
			}
			byProvider[provider] = s
			break
		}
	}
	return byProvider
}

func absMillis(d int64) int64 {
	if d < 0 {
		return -d
	}
	return d
}

// millisToMinutes truncates to whole seconds before converting
func millisToMinutes(ms int64) float64 {
	return float64(ms/1000) / 60
}
