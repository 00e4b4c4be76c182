package spatial

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/ringsaturn/tzf"
)

var (
	// ErrInvalidCoordinate is returned for coordinates outside lat [-90, 90] / lon [-180, 180]
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrUnresolvableTimezone is returned when no IANA zone covers a coordinate
	ErrUnresolvableTimezone = errors.New("unresolvable timezone")
)

// TimezoneResolver maps a coordinate to its IANA time zone
type TimezoneResolver interface {
	Resolve(lat, lon float64) (*time.Location, error)
}

// zoneKey is a coordinate rounded to 1e-3 degrees (~110 m)
type zoneKey struct {
	lat, lon int32
}

func newZoneKey(lat, lon float64) zoneKey {
	return zoneKey{
		lat: int32(math.Round(lat * 1000)),
		lon: int32(math.Round(lon * 1000)),
	}
}

// TZFResolver resolves time zones from the embedded tzf polygon data
type TZFResolver struct {
	finder tzf.F
	cache  *otter.Cache[zoneKey, *time.Location]
}

// NewTZFResolver creates a resolver backed by tzf with a bounded lookup cache
func NewTZFResolver(cacheSize int) (*TZFResolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone finder: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = 10_000
	}

	return &TZFResolver{
		finder: finder,
		cache: otter.Must(&otter.Options[zoneKey, *time.Location]{
			MaximumSize: cacheSize,
		}),
	}, nil
}

// Resolve returns the time zone containing the coordinate
func (r *TZFResolver) Resolve(lat, lon float64) (*time.Location, error) {
	if !ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, lat, lon)
	}

	key := newZoneKey(lat, lon)
	if loc, ok := r.cache.GetIfPresent(key); ok {
		return loc, nil
	}

	name := r.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return nil, fmt.Errorf("%w: (%f, %f)", ErrUnresolvableTimezone, lat, lon)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvableTimezone, name, err)
	}

	r.cache.Set(key, loc)
	return loc, nil
}

// FixedResolver resolves every valid coordinate to the same location
type FixedResolver struct {
	Location *time.Location
}

// Resolve returns the fixed location
func (r FixedResolver) Resolve(lat, lon float64) (*time.Location, error) {
	if !ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, lat, lon)
	}
	if r.Location == nil {
		return nil, ErrUnresolvableTimezone
	}
	return r.Location, nil
}
