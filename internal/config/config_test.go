package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultProcessingOptions(t *testing.T) {
	opts := DefaultProcessingOptions()

	assert.True(t, opts.MergeStillEvents)
	assert.True(t, opts.MergeWalkingRunning)
	assert.Equal(t, 2*time.Minute, opts.StillMergeThreshold())
	assert.Equal(t, 2*time.Minute, opts.WalkingRunningMergeThreshold())
	assert.Equal(t, 3, opts.DayStartOffsetHours)
	assert.Equal(t, []int64{YorkRegionID}, opts.ExcludedRegionIDs)
	assert.NoError(t, opts.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Run("overrides only listed keys", func(t *testing.T) {
		path := writeConfig(t, `
processing:
  mergeStillEvents: false
  stillMergeThresholdMinutes: 5
  dayStartOffsetHours: 4
`)
		opts := DefaultProcessingOptions()
		require.NoError(t, LoadFile(path, &opts))

		assert.False(t, opts.MergeStillEvents)
		assert.True(t, opts.MergeWalkingRunning)
		assert.Equal(t, 5, opts.StillMergeThresholdMinutes)
		assert.Equal(t, 2, opts.WalkingRunningMergeThresholdMinutes)
		assert.Equal(t, 4, opts.DayStartOffsetHours)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, `
processing:
  mergeEverything: true
`)
		opts := DefaultProcessingOptions()
		assert.Error(t, LoadFile(path, &opts))
	})

	t.Run("offset out of range", func(t *testing.T) {
		path := writeConfig(t, `
processing:
  dayStartOffsetHours: 24
`)
		opts := DefaultProcessingOptions()
		assert.Error(t, LoadFile(path, &opts))
	})

	t.Run("negative threshold", func(t *testing.T) {
		path := writeConfig(t, `
processing:
  walkingRunningMergeThresholdMinutes: -1
`)
		opts := DefaultProcessingOptions()
		assert.Error(t, LoadFile(path, &opts))
	})

	t.Run("missing file", func(t *testing.T) {
		opts := DefaultProcessingOptions()
		assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "nope.yml"), &opts))
	})
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("WORKERS", "4")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultProcessingOptions(), cfg.Processing)

	t.Setenv("WORKERS", "zero")
	_, err = Load()
	assert.Error(t, err)
}
