package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Yunkai-Xiao/MisakiCat/internal/bot/tasks"
	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
)

// Scheduler runs maintenance tasks on cron schedules using gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
	stopped   bool
}

// NewScheduler creates a scheduler for the tasks in taskMap that cfg enables.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start registers every enabled task and starts ticking. Tasks receive ctx,
// so cancelling it aborts running jobs. It returns the number of jobs
// scheduled.
func (s *Scheduler) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return 0, errors.New("scheduler is already running")
	}
	if s.stopped {
		return 0, errors.New("scheduler has been stopped")
	}

	var taskConfigs map[string]config.TaskConfig
	if s.cfg != nil {
		taskConfigs = s.cfg.Tasks
	}
	if len(taskConfigs) == 0 {
		s.logger.Warn("No scheduler tasks configured")
	}

	scheduledCount := 0
	for taskName, taskConfig := range taskConfigs {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(s.wrap(ctx, taskName, taskFunc)),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount)

	return scheduledCount, nil
}

func (s *Scheduler) wrap(ctx context.Context, name string, taskFunc tasks.ScheduledTaskFunc) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("Running scheduled task", "task_name", name)
		startTime := time.Now()
		if err := taskFunc(ctx); err != nil {
			s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
		}
		s.logger.Debug("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
	}
}

// Stop shuts the scheduler down, waiting for running jobs to complete. It
// must be called even if Start never was, to release gocron's goroutines.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}

	s.running = false
	s.stopped = true
	return err
}
