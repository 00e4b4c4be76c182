package models

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// TimestampSource records which step of the fallback chain produced a device timestamp
type TimestampSource int

// TimestampSource constants, in fallback order
const (
	TimestampFromField TimestampSource = iota
	TimestampFromID
	TimestampFromIDPrefix
	TimestampSentinel
)

// MinDeviceTimestamp is assigned to device snapshots whose timestamp cannot be parsed.
// It sorts before every real timestamp so it never outranks a valid match.
const MinDeviceTimestamp int64 = math.MinInt64

// DeviceSnapshot represents the device state reported at a point in time
type DeviceSnapshot struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// Timestamp as stored; may be nil for older app versions
	RawTimestamp *string `json:"timestamp,omitempty" db:"timestamp"`

	// Parsed timestamp (Unix millis) and the step that produced it
	Timestamp       int64           `json:"-"`
	TimestampSource TimestampSource `json:"-"`

	RegionID                     *int64 `json:"region_id,omitempty" db:"region_id"`
	IgnoringBatteryOptimizations *bool  `json:"ignoring_battery_optimizations,omitempty" db:"ignoring_battery_optimizations"`
	PowerSaveModeEnabled         *bool  `json:"power_save_mode_enabled,omitempty" db:"power_save_mode_enabled"`
	TalkBackEnabled              *bool  `json:"talk_back_enabled,omitempty" db:"talk_back_enabled"`

	AppVersion    string `json:"app_version,omitempty" db:"app_version"`
	DeviceModel   string `json:"device_model,omitempty" db:"device_model"`
	SDKVersionInt *int   `json:"sdk_version_int,omitempty" db:"sdk_version_int"`
}

// timestampAttempt is one step of the timestamp fallback chain
type timestampAttempt struct {
	source TimestampSource
	parse  func(d *DeviceSnapshot) (int64, bool)
}

var timestampChain = []timestampAttempt{
	{TimestampFromField, func(d *DeviceSnapshot) (int64, bool) {
		if d.RawTimestamp == nil {
			return 0, false
		}
		return parseMillis(*d.RawTimestamp)
	}},
	{TimestampFromID, func(d *DeviceSnapshot) (int64, bool) {
		return parseMillis(d.ID)
	}},
	{TimestampFromIDPrefix, func(d *DeviceSnapshot) (int64, bool) {
		prefix, _, found := strings.Cut(d.ID, "-")
		if !found {
			return 0, false
		}
		return parseMillis(prefix)
	}},
}

func parseMillis(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ResolveTimestamp walks the fallback chain (explicit field, record id, numeric
// id prefix before the first dash) and stores the first successful parse.
// When every step fails the timestamp is MinDeviceTimestamp.
func (d *DeviceSnapshot) ResolveTimestamp() {
	for _, attempt := range timestampChain {
		if ts, ok := attempt.parse(d); ok {
			d.Timestamp = ts
			d.TimestampSource = attempt.source
			return
		}
	}
	d.Timestamp = MinDeviceTimestamp
	d.TimestampSource = TimestampSentinel
}

// SortDeviceSnapshots orders device snapshots by resolved timestamp, ascending
func SortDeviceSnapshots(devices []DeviceSnapshot) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Timestamp < devices[j].Timestamp
	})
}
