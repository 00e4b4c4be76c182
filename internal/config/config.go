package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port       string
	DBPath     string
	JWTSecret  string
	LogLevel   string // debug, info, warn, error
	ConfigFile string // 可选 YAML 文件
	Workers    int    // 并行处理的用户数

	Processing ProcessingOptions
}

// ProcessingOptions controls trip segmentation for every user run.
// It is read-only once loaded.
type ProcessingOptions struct {
	MergeStillEvents                    bool    `yaml:"mergeStillEvents"`
	MergeWalkingRunning                 bool    `yaml:"mergeWalkingRunning"`
	StillMergeThresholdMinutes          int     `yaml:"stillMergeThresholdMinutes" validate:"gte=0"`
	WalkingRunningMergeThresholdMinutes int     `yaml:"walkingRunningMergeThresholdMinutes" validate:"gte=0"`
	DayStartOffsetHours                 int     `yaml:"dayStartOffsetHours" validate:"gte=0,lte=23"`
	ExcludedRegionIDs                   []int64 `yaml:"excludedRegionIds"`
	TimezoneCacheSize                   int     `yaml:"timezoneCacheSize" validate:"gte=0"`
}

// YorkRegionID is the region that opted out of data export
const YorkRegionID int64 = 5

// DefaultProcessingOptions returns the stock segmentation settings
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		MergeStillEvents:                    true,
		MergeWalkingRunning:                 true,
		StillMergeThresholdMinutes:          2,
		WalkingRunningMergeThresholdMinutes: 2,
		DayStartOffsetHours:                 3,
		ExcludedRegionIDs:                   []int64{YorkRegionID},
		TimezoneCacheSize:                   10_000,
	}
}

// StillMergeThreshold returns the still-merge gap as a duration
func (o ProcessingOptions) StillMergeThreshold() time.Duration {
	return time.Duration(o.StillMergeThresholdMinutes) * time.Minute
}

// WalkingRunningMergeThreshold returns the walking/running merge gap as a duration
func (o ProcessingOptions) WalkingRunningMergeThreshold() time.Duration {
	return time.Duration(o.WalkingRunningMergeThresholdMinutes) * time.Minute
}

// Validate checks the option ranges
func (o ProcessingOptions) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid processing options: %w", err)
	}
	return nil
}

type fileConfig struct {
	Processing *ProcessingOptions `yaml:"processing"`
}

// LoadFile overlays the processing block of a YAML file onto opts.
// Keys missing from the file keep their current values; unknown keys are rejected.
func LoadFile(path string, opts *ProcessingOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	fc := fileConfig{Processing: opts}
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return opts.Validate()
}

// Load 加载配置
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/travel/travel_behavior.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	workers := 1
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid WORKERS value %q", v)
		}
		workers = n
	}

	cfg := &Config{
		Port:       port,
		DBPath:     dbPath,
		JWTSecret:  jwtSecret,
		LogLevel:   logLevel,
		ConfigFile: os.Getenv("CONFIG_FILE"),
		Workers:    workers,
		Processing: DefaultProcessingOptions(),
	}

	if cfg.ConfigFile != "" {
		if err := LoadFile(cfg.ConfigFile, &cfg.Processing); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
