// Package scheduler runs the pipeline on a daily, hourly or fixed-interval
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Spec converts the scheduler config to a cron spec.
func Spec(cfg config.SchedulerConfig) (string, error) {
	switch cfg.Mode {
	case "daily", "":
		hour, minute, err := config.ParseClock(cfg.Time)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case "hourly":
		return "@hourly", nil
	case "interval":
		if cfg.IntervalMinutes <= 0 {
			return "", fmt.Errorf("scheduler.interval_minutes must be positive")
		}
		return fmt.Sprintf("@every %dm", cfg.IntervalMinutes), nil
	default:
		return "", fmt.Errorf("unknown scheduler mode %q", cfg.Mode)
	}
}

type Scheduler struct {
	cfg  config.SchedulerConfig
	spec string
	job  Job
	cron *cron.Cron
	id   cron.EntryID
	log  *slog.Logger
}

func New(cfg config.SchedulerConfig, job Job) (*Scheduler, error) {
	spec, err := Spec(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.Component("scheduler")
	cl := cronLogger{log: log}
	s := &Scheduler{
		cfg:  cfg,
		spec: spec,
		job:  job,
		log:  log,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	return s, nil
}

func (s *Scheduler) Spec() string { return s.spec }

// Run registers the job, optionally runs it once right away, and blocks until
// ctx is cancelled. A running job is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.runJob(ctx) })
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.spec, err)
	}
	s.id = id

	s.log.Info("scheduler started", "mode", s.cfg.Mode, "spec", s.spec)
	if s.cfg.RunOnStart {
		s.log.Info("running immediately", "reason", "run_on_start")
		s.runJob(ctx)
	}

	s.cron.Start()
	s.log.Info("next run", "at", s.Next())

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// Next is the time of the next scheduled run, zero before Run.
func (s *Scheduler) Next() time.Time {
	if s.id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.id).Next
}

// runJob logs failures and never propagates them, so one bad run cannot stop
// the schedule.
func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.log.Info("scheduled run started")
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled run panicked", "panic", r)
		}
	}()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled run failed", "error", err, "duration", time.Since(start))
		return
	}
	s.log.Info("scheduled run completed", "duration", time.Since(start))
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
