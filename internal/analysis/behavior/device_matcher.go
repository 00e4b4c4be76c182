package behavior

import (
	"sort"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
)

// ClosestDeviceSnapshot returns the latest snapshot taken at or before target.
// devices must be sorted ascending by Timestamp.
func ClosestDeviceSnapshot(devices []models.DeviceSnapshot, target int64) (*models.DeviceSnapshot, bool) {
	i := sort.Search(len(devices), func(i int) bool {
		return devices[i].Timestamp > target
	})
	if i == 0 {
		return nil, false
	}
	return &devices[i-1], true
}

// ApplyDeviceState copies the non-nil device fields onto the trip
func ApplyDeviceState(trip *models.Trip, d *models.DeviceSnapshot) {
	if d.RegionID != nil {
		trip.RegionID = d.RegionID
	}
	if d.IgnoringBatteryOptimizations != nil {
		trip.IgnoringBatteryOptimizations = d.IgnoringBatteryOptimizations
	}
	if d.PowerSaveModeEnabled != nil {
		trip.PowerSaveModeEnabled = d.PowerSaveModeEnabled
	}
	if d.TalkBackEnabled != nil {
		trip.TalkBackEnabled = d.TalkBackEnabled
	}
}
