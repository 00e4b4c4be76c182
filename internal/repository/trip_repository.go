package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jengzang/travel-behavior-backend-go/internal/database"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

const tripColumns = `id, run_id, user_id, trip_id, activity, confidence,
	origin_json, destination_json, duration_minutes, distance_meters,
	region_id, ignoring_battery_optimizations, power_save_mode_enabled, talk_back_enabled,
	chain_id, chain_index, tour_id, tour_index, created_at`

// TripRepository handles database operations for trips
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

// Emit stores one flushed day of trips in a single transaction
func (r *TripRepository) Emit(ctx context.Context, trips []models.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	query := `INSERT INTO trips (
			run_id, user_id, trip_id, activity, confidence,
			origin_json, destination_json, start_ms, end_ms,
			duration_minutes, distance_meters,
			region_id, ignoring_battery_optimizations, power_save_mode_enabled, talk_back_enabled,
			chain_id, chain_index, tour_id, tour_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare trip insert: %w", err)
		}
		defer stmt.Close()

		for i := range trips {
			t := &trips[i]

			origin, err := json.Marshal(t.Origin)
			if err != nil {
				return fmt.Errorf("failed to encode origin of trip %d: %w", t.TripID, err)
			}
			var destination *string
			if t.Destination != nil {
				if destination, err = marshalString(t.Destination); err != nil {
					return fmt.Errorf("failed to encode destination of trip %d: %w", t.TripID, err)
				}
			}

			var start, end *int64
			if ms, ok := t.StartMillis(); ok {
				start = &ms
			}
			if ms, ok := t.EndMillis(); ok {
				end = &ms
			}

			_, err = stmt.ExecContext(ctx,
				t.RunID, t.UserID, t.TripID, t.Activity, t.Confidence,
				string(origin), destination, start, end,
				t.DurationMinutes, t.DistanceMeters,
				t.RegionID, t.IgnoringBatteryOptimizations, t.PowerSaveModeEnabled, t.TalkBackEnabled,
				t.ChainID, t.ChainIndex, t.TourID, t.TourIndex,
			)
			if err != nil {
				return fmt.Errorf("failed to insert trip %d for user %s: %w", t.TripID, t.UserID, err)
			}
		}
		return nil
	})
}

// DeleteByUser removes every trip of a user
func (r *TripRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM trips WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trips for user %s: %w", userID, err)
	}
	return result.RowsAffected()
}

// CountByUser returns how many trips are stored for a user
func (r *TripRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trips WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trips for user %s: %w", userID, err)
	}
	return count, nil
}

// GetTrips retrieves trips with filtering and pagination
func (r *TripRepository) GetTrips(filter models.TripFilter) ([]models.Trip, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Activity != "" {
		conditions = append(conditions, "activity = ?")
		args = append(args, filter.Activity)
	}
	if filter.TourID > 0 {
		conditions = append(conditions, "tour_id = ?")
		args = append(args, filter.TourID)
	}
	if filter.StartTime > 0 {
		conditions = append(conditions, "start_ms >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "end_ms <= ?")
		args = append(args, filter.EndTime)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM trips"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 100
	}
	if filter.PageSize > 1000 {
		filter.PageSize = 1000
	}

	offset := (filter.Page - 1) * filter.PageSize
	query := "SELECT " + tripColumns + " FROM trips" + where + " ORDER BY user_id, trip_id LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	trips := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		trips = append(trips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read trips: %w", err)
	}

	return trips, total, nil
}

// GetTripByID retrieves a single trip by ID, nil when it does not exist
func (r *TripRepository) GetTripByID(id int64) (*models.Trip, error) {
	row := r.db.QueryRow("SELECT "+tripColumns+" FROM trips WHERE id = ?", id)
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	var origin string
	var destination sql.NullString

	err := row.Scan(
		&t.ID, &t.RunID, &t.UserID, &t.TripID, &t.Activity, &t.Confidence,
		&origin, &destination, &t.DurationMinutes, &t.DistanceMeters,
		&t.RegionID, &t.IgnoringBatteryOptimizations, &t.PowerSaveModeEnabled, &t.TalkBackEnabled,
		&t.ChainID, &t.ChainIndex, &t.TourID, &t.TourIndex, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip: %w", err)
	}

	if err := json.Unmarshal([]byte(origin), &t.Origin); err != nil {
		return nil, fmt.Errorf("failed to decode origin of trip %d: %w", t.ID, err)
	}
	if destination.Valid {
		t.Destination = &models.Endpoint{}
		if err := json.Unmarshal([]byte(destination.String), t.Destination); err != nil {
			return nil, fmt.Errorf("failed to decode destination of trip %d: %w", t.ID, err)
		}
	}

	return &t, nil
}

// TripMeasure is the per-trip data behind a summary
type TripMeasure struct {
	Activity        string
	DurationMinutes *float64
	DistanceMeters  *float64
}

// GetTripMeasures returns the activity, duration and distance of every trip of a user
func (r *TripRepository) GetTripMeasures(userID string) ([]TripMeasure, error) {
	rows, err := r.db.Query(
		"SELECT activity, duration_minutes, distance_meters FROM trips WHERE user_id = ? ORDER BY trip_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip measures: %w", err)
	}
	defer rows.Close()

	var measures []TripMeasure
	for rows.Next() {
		var m TripMeasure
		if err := rows.Scan(&m.Activity, &m.DurationMinutes, &m.DistanceMeters); err != nil {
			return nil, fmt.Errorf("failed to scan trip measure: %w", err)
		}
		measures = append(measures, m)
	}
	return measures, rows.Err()
}
