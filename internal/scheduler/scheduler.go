package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// RunFunc performs one ingestion pass. It must return once ctx is done.
type RunFunc func(ctx context.Context)

// Config holds scheduler configuration.
type Config struct {
	Cron        string         // Standard 5-field cron expression (default: hourly)
	WithSeconds bool           // Cron carries a leading seconds field
	Location    *time.Location // Zone the expression is evaluated in (default: UTC)
	RunOnStart  bool           // Run once immediately on Start
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cron:     "0 * * * *",
		Location: time.UTC,
	}
}

// Scheduler runs a RunFunc on a cron schedule.
type Scheduler struct {
	cfg    Config
	run    RunFunc
	logger *slog.Logger

	cron *gocron.Scheduler
	job  *gocron.Job

	ctx    context.Context
	cancel context.CancelFunc

	// runMu is held for the duration of a run.
	runMu   sync.Mutex
	runs    atomic.Int64
	skipped atomic.Int64
}

// New creates a new Scheduler.
func New(cfg Config, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cron == "" {
		cfg.Cron = DefaultConfig().Cron
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		cfg:    cfg,
		run:    run,
		logger: logger,
	}
}

// Start registers the job and begins scheduling. Runs receive a context
// derived from ctx that is canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	// No singleton mode: it queues a tick behind a slow run. Ticks reach tick
	// concurrently and any that land during a run are dropped there.
	s.cron = gocron.NewScheduler(s.cfg.Location)

	var sched *gocron.Scheduler
	if s.cfg.WithSeconds {
		sched = s.cron.CronWithSeconds(s.cfg.Cron)
	} else {
		sched = s.cron.Cron(s.cfg.Cron)
	}

	job, err := sched.Do(s.tick)
	if err != nil {
		s.cancel()
		return fmt.Errorf("schedule %q: %w", s.cfg.Cron, err)
	}
	s.job = job

	s.cron.StartAsync()

	if s.cfg.RunOnStart {
		go s.tick()
	}

	s.logger.Info("scheduler started",
		"cron", s.cfg.Cron,
		"timezone", s.cfg.Location.String(),
		"next_run", s.job.NextRun(),
		"run_on_start", s.cfg.RunOnStart,
	)

	return nil
}

// Stop cancels any in-flight run and waits for it to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	// gocron's Stop waits for job goroutines, so it counts against ctx too.
	done := make(chan struct{})
	go func() {
		if s.cron != nil {
			s.cron.Stop()
		}
		s.runMu.Lock()
		s.runMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped", "runs", s.runs.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun returns the next scheduled run time, or zero before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Runs returns the number of runs started.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Skipped returns the number of ticks dropped because a run was in flight.
// A dropped tick is not retried; the next run waits for the following tick.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) tick() {
	if !s.runMu.TryLock() {
		s.skipped.Add(1)
		s.logger.Warn("previous run still in progress, skipping tick")
		return
	}
	defer s.runMu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	s.runs.Add(1)
	s.run(s.ctx)
}
