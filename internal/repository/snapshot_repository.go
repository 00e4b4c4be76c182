package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/database"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

// SnapshotRepository reads and writes raw activity and device snapshots
type SnapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger.Named("snapshots")}
}

// FetchSnapshots returns a user's snapshots ordered by event time. Snapshots
// without an event time come first; ties break on id. An active range keeps
// only snapshots whose event time lies within it.
func (r *SnapshotRepository) FetchSnapshots(ctx context.Context, userID string, dr models.DateRange) ([]models.RawSnapshot, error) {
	query := `SELECT id, user_id, activities_json, locations_json
		FROM activity_snapshots WHERE user_id = ?`
	args := []interface{}{userID}
	if dr.Active() {
		query += " AND event_time_ms BETWEEN ? AND ?"
		args = append(args, dr.StartMillis, dr.EndMillis)
	}
	query += " ORDER BY event_time_ms, id"

	var snapshots []models.RawSnapshot
	err := withRetry(ctx, r.logger, "fetch_snapshots", func() error {
		snapshots = snapshots[:0]

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s models.RawSnapshot
			var activities, locations sql.NullString
			if err := rows.Scan(&s.ID, &s.UserID, &activities, &locations); err != nil {
				return err
			}
			r.decode(&s, activities, locations)
			snapshots = append(snapshots, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots for user %s: %w", userID, err)
	}

	return snapshots, nil
}

// decode fills the JSON columns. An unreadable activity list leaves the
// snapshot malformed; unreadable locations leave it without locations.
func (r *SnapshotRepository) decode(s *models.RawSnapshot, activities, locations sql.NullString) {
	if activities.Valid {
		if err := json.Unmarshal([]byte(activities.String), &s.Activities); err != nil {
			r.logger.Warn("unreadable activities", zap.String("snapshot_id", s.ID), zap.Error(err))
			s.Activities = nil
		}
	}
	if locations.Valid {
		if err := json.Unmarshal([]byte(locations.String), &s.Locations); err != nil {
			r.logger.Warn("unreadable locations", zap.String("snapshot_id", s.ID), zap.Error(err))
			s.Locations = nil
		}
	}
}

// FetchDeviceSnapshots returns a user's device snapshots with resolved
// timestamps, sorted ascending by timestamp
func (r *SnapshotRepository) FetchDeviceSnapshots(ctx context.Context, userID string) ([]models.DeviceSnapshot, error) {
	query := `SELECT id, user_id, timestamp, region_id,
		ignoring_battery_optimizations, power_save_mode_enabled, talk_back_enabled,
		app_version, device_model, sdk_version_int
		FROM device_snapshots WHERE user_id = ?`

	var devices []models.DeviceSnapshot
	err := withRetry(ctx, r.logger, "fetch_device_snapshots", func() error {
		devices = devices[:0]

		rows, err := r.db.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var d models.DeviceSnapshot
			err := rows.Scan(
				&d.ID, &d.UserID, &d.RawTimestamp, &d.RegionID,
				&d.IgnoringBatteryOptimizations, &d.PowerSaveModeEnabled, &d.TalkBackEnabled,
				&d.AppVersion, &d.DeviceModel, &d.SDKVersionInt,
			)
			if err != nil {
				return err
			}
			d.ResolveTimestamp()
			if d.TimestampSource == models.TimestampSentinel {
				r.logger.Debug("device snapshot without usable timestamp", zap.String("device_snapshot_id", d.ID))
			}
			devices = append(devices, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device snapshots for user %s: %w", userID, err)
	}

	models.SortDeviceSnapshots(devices)
	return devices, nil
}

// ListUserIDs returns every user that has at least one snapshot
func (r *SnapshotRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var users []string
	err := withRetry(ctx, r.logger, "list_users", func() error {
		users = users[:0]

		rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM activity_snapshots ORDER BY user_id")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			users = append(users, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// InsertSnapshots stores snapshots for a user, replacing any with the same id
func (r *SnapshotRepository) InsertSnapshots(ctx context.Context, userID string, snapshots []models.RawSnapshot) (int, error) {
	query := `INSERT OR REPLACE INTO activity_snapshots
		(id, user_id, event_time_ms, activities_json, locations_json)
		VALUES (?, ?, ?, ?, ?)`

	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range snapshots {
			var activities, locations *string
			if s.Activities != nil {
				activities, err = marshalString(s.Activities)
				if err != nil {
					return err
				}
			}
			if s.Locations != nil {
				locations, err = marshalString(s.Locations)
				if err != nil {
					return err
				}
			}
			if _, err := stmt.ExecContext(ctx, s.ID, userID, s.EventTime(), activities, locations); err != nil {
				return fmt.Errorf("snapshot %s: %w", s.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshots: %w", err)
	}
	return len(snapshots), nil
}

// InsertDeviceSnapshots stores device snapshots for a user, replacing any with the same id
func (r *SnapshotRepository) InsertDeviceSnapshots(ctx context.Context, userID string, devices []models.DeviceSnapshot) (int, error) {
	query := `INSERT OR REPLACE INTO device_snapshots
		(id, user_id, timestamp, region_id,
		 ignoring_battery_optimizations, power_save_mode_enabled, talk_back_enabled,
		 app_version, device_model, sdk_version_int)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, d := range devices {
			_, err := stmt.ExecContext(ctx,
				d.ID, userID, d.RawTimestamp, d.RegionID,
				d.IgnoringBatteryOptimizations, d.PowerSaveModeEnabled, d.TalkBackEnabled,
				d.AppVersion, d.DeviceModel, d.SDKVersionInt,
			)
			if err != nil {
				return fmt.Errorf("device snapshot %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert device snapshots: %w", err)
	}
	return len(devices), nil
}

func marshalString(v interface{}) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
