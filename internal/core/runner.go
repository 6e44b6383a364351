package core

// runner.go drives running jobs in the background.
//
// Every tick the runner loads the jobs in JobRunning status and runs one step
// of each, at most MaxConcurrent at a time. A job that is mid-step from an
// HTTP request is skipped for that tick. The runner stops when its context is
// cancelled; steps already started finish at their batch boundary and can be
// awaited with WaitForSteps.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultStepInterval is how often the runner picks up running jobs.
const DefaultStepInterval = 2 * time.Second

// StartRunner runs running jobs one step per tick until ctx is cancelled.
// It blocks; call it in its own goroutine.
func (s *Service) StartRunner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	slog.Info("import runner started",
		"interval", interval.String(),
		"max_concurrent", s.limiter.MaxConcurrent(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("import runner stopped")
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// RunOnce runs one tick and returns how many steps were executed.
func (s *Service) RunOnce(ctx context.Context) int {
	return s.runTick(ctx)
}

// runTick performs one step for every running job.
func (s *Service) runTick(ctx context.Context) int {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		slog.Error("runner list jobs failed", "error", err)
		return 0
	}

	var g errgroup.Group
	g.SetLimit(s.limiter.MaxConcurrent())

	steps := 0
	for _, job := range jobs {
		if job.Status != JobRunning {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		steps++
		g.Go(func() error {
			s.runBackgroundStep(ctx, job)
			return nil
		})
	}
	g.Wait()
	return steps
}

// runBackgroundStep runs one step as the job's creator, who was checked for
// import permission when the job was started.
func (s *Service) runBackgroundStep(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import step",
				"job_id", job.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			s.fail(ctx, job, fmt.Errorf("panic in import step: %v", r))
		}
	}()

	op := Operator{ID: job.OperatorID, CanImport: true}
	report, err := s.runStep(ctx, op, job.ID)
	switch {
	case err == nil:
		slog.Debug("background step done", "job_id", job.ID, "step", report.Step, "more", report.More)
	case errors.Is(err, ErrJobBusy), errors.Is(err, ErrJobFinished), errors.Is(err, ErrTooManySteps):
		slog.Debug("background step skipped", "job_id", job.ID, "reason", err)
	case errors.Is(err, context.Canceled):
	default:
		slog.Warn("background step failed", "job_id", job.ID, "error", err)
	}
}
