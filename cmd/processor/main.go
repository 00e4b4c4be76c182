// Command processor runs the travel behavior analysis once and exits.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/analysis"
	"github.com/jengzang/travel-behavior-backend-go/internal/analysis/behavior"
	"github.com/jengzang/travel-behavior-backend-go/internal/config"
	"github.com/jengzang/travel-behavior-backend-go/internal/database"
	"github.com/jengzang/travel-behavior-backend-go/internal/logging"
	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/repository"
	"github.com/jengzang/travel-behavior-backend-go/internal/service"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

// dateZone is the zone -start and -end dates are read in
const dateZone = "America/New_York"

type options struct {
	user                    string
	usersFile               string
	noMergeStill            bool
	noMergeWalkingRunning   bool
	dayStart                int
	stillThreshold          int
	walkingRunningThreshold int
	start                   string
	end                     string
	configFile              string
	dbPath                  string
	workers                 int
	full                    bool
	verbose                 bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "processor:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts, set, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}
	if err := applyOptions(cfg, opts, set); err != nil {
		return err
	}

	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params, err := taskParams(opts)
	if err != nil {
		return err
	}

	db, err := database.Open(database.Config{Path: cfg.DBPath}, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db, logger); err != nil {
		return err
	}

	resolver, err := spatial.NewTZFResolver(cfg.Processing.TimezoneCacheSize)
	if err != nil {
		return err
	}

	tasks := service.NewAnalysisTaskService(repository.NewAnalysisTaskRepository(db), analysis.Dependencies{
		DB:       db,
		Config:   cfg,
		Resolver: resolver,
		Logger:   logger,
	})

	taskType := models.TaskTypeIncremental
	if opts.full {
		taskType = models.TaskTypeFullRecompute
	}
	task, err := tasks.NewTask(behavior.SkillName, taskType, params, "cli")
	if errors.Is(err, service.ErrNothingToDo) {
		logger.Info("nothing to do")
		return nil
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tasks.RunTask(ctx, task); err != nil {
		return err
	}

	done, err := tasks.GetTask(task.ID)
	if err != nil {
		return err
	}
	if done.ResultSummary != nil {
		fmt.Println(*done.ResultSummary)
	}
	logger.Info("processing finished",
		zap.Int64("task_id", done.ID),
		zap.Int("users", done.TotalUsers),
		zap.Int("failed_users", done.FailedUsers))
	return nil
}

// parseFlags returns the parsed options and the names of the flags given explicitly
func parseFlags(args []string, cfg *config.Config) (options, map[string]bool, error) {
	defaults := config.DefaultProcessingOptions()
	var o options

	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.StringVar(&o.user, "user", "", "process a single user id")
	fs.StringVar(&o.usersFile, "users-file", "", "file with one user id per line")
	fs.BoolVar(&o.noMergeStill, "no-merge-still", false, "do not merge trips across short STILL periods")
	fs.BoolVar(&o.noMergeWalkingRunning, "no-merge-walking-running", false, "do not merge adjacent walking and running trips")
	fs.IntVar(&o.dayStart, "day-start", defaults.DayStartOffsetHours, "hour after local midnight at which a new day starts")
	fs.IntVar(&o.stillThreshold, "still-threshold", defaults.StillMergeThresholdMinutes, "still merge threshold in minutes")
	fs.IntVar(&o.walkingRunningThreshold, "walking-running-threshold", defaults.WalkingRunningMergeThresholdMinutes, "walking/running merge threshold in minutes")
	fs.StringVar(&o.start, "start", "", "first day to process, YYYY-MM-DD ("+dateZone+")")
	fs.StringVar(&o.end, "end", "", "last day to process, YYYY-MM-DD ("+dateZone+")")
	fs.StringVar(&o.configFile, "config", cfg.ConfigFile, "YAML file with a processing block")
	fs.StringVar(&o.dbPath, "db", cfg.DBPath, "sqlite database path")
	fs.IntVar(&o.workers, "workers", cfg.Workers, "users processed concurrently")
	fs.BoolVar(&o.full, "full", false, "delete and recompute the selected users' trips")
	fs.BoolVar(&o.verbose, "verbose", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return o, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

// applyOptions layers the config file and then explicit flags over cfg
func applyOptions(cfg *config.Config, o options, set map[string]bool) error {
	cfg.DBPath = o.dbPath
	if o.workers < 1 {
		return fmt.Errorf("-workers must be at least 1")
	}
	cfg.Workers = o.workers

	if set["config"] && o.configFile != "" {
		cfg.ConfigFile = o.configFile
		if err := config.LoadFile(o.configFile, &cfg.Processing); err != nil {
			return err
		}
	}

	p := &cfg.Processing
	if o.noMergeStill {
		p.MergeStillEvents = false
	}
	if o.noMergeWalkingRunning {
		p.MergeWalkingRunning = false
	}
	if set["day-start"] {
		p.DayStartOffsetHours = o.dayStart
	}
	if set["still-threshold"] {
		p.StillMergeThresholdMinutes = o.stillThreshold
	}
	if set["walking-running-threshold"] {
		p.WalkingRunningMergeThresholdMinutes = o.walkingRunningThreshold
	}
	return p.Validate()
}

func taskParams(o options) (*models.TaskParams, error) {
	params := &models.TaskParams{}

	if o.user != "" {
		params.UserIDs = append(params.UserIDs, o.user)
	}
	if o.usersFile != "" {
		ids, err := readUsers(o.usersFile)
		if err != nil {
			return nil, err
		}
		params.UserIDs = append(params.UserIDs, ids...)
	}

	if (o.start == "") != (o.end == "") {
		return nil, fmt.Errorf("-start and -end must be given together")
	}
	if o.start != "" {
		loc, err := time.LoadLocation(dateZone)
		if err != nil {
			return nil, err
		}
		start, err := time.ParseInLocation("2006-01-02", o.start, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid -start: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02", o.end, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid -end: %w", err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("-end is before -start")
		}
		params.StartMillis = start.UnixMilli()
		// -end is inclusive
		params.EndMillis = end.AddDate(0, 0, 1).UnixMilli() - 1
	}

	return params, nil
}

func readUsers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open users file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" && !strings.HasPrefix(id, "#") {
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	return ids, nil
}
