// Package scheduler runs the repricing pipeline on a cron cadence for
// long-lived daemon mode.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quietgrove/needledrop/internal/common"
)

// Job is one scheduled repricing pass. The scheduler owns the context and
// cancels it on Stop.
type Job func(ctx context.Context) error

// Scheduler triggers a repricing job on a cron schedule. Runs never overlap:
// a tick that arrives while the previous pass is still working is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	spec    string
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// New validates the cron expression and builds a scheduler. The spec uses
// the standard five-field format, e.g. "0 3 * * *" for 3am daily. A zero
// timeout means each pass runs unbounded.
func New(spec string, timeout time.Duration, job Job) (*Scheduler, error) {
	if spec == "" {
		return nil, fmt.Errorf("%w: schedule expression", common.ErrMissingConfig)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: schedule job", common.ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("%w: schedule expression %q: %v", common.ErrInvalidConfig, spec, err)
	}

	return &Scheduler{
		cron:    cron.New(),
		job:     job,
		spec:    spec,
		timeout: timeout,
	}, nil
}

// Start registers the job and begins ticking. It returns immediately; use
// Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() { _ = s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	s.cron.Start()
	slog.Info("Scheduler started", "schedule", s.spec)
	return nil
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

// Next reports when the next pass would fire after the given time.
func (s *Scheduler) Next(after time.Time) time.Time {
	schedule, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(after)
}

func (s *Scheduler) tick(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("Skipping scheduled pass, previous pass still running", "schedule", s.spec)
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	jobCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	if err := s.job(jobCtx); err != nil {
		slog.Error("Scheduled pass failed", "error", err, "duration", time.Since(started))
		return err
	}
	slog.Info("Scheduled pass finished", "duration", time.Since(started))
	return nil
}

// RunOnce executes the job immediately, outside the cron cadence. The CLI
// uses it for --now.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.tick(ctx)
}
