package core

// limiter.go bounds how many import steps run at once across all jobs.
//
// Every step, whether requested over HTTP or picked up by the background
// runner, holds one slot of a counting semaphore for its duration. Callers
// that cannot get a slot within the configured wait receive ErrTooManySteps.
// WaitForDrain lets shutdown wait for in-flight steps.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManySteps is returned when every step slot stays busy for the whole
// wait. Clients should retry after a short delay.
var ErrTooManySteps = errors.New("too many import steps in progress, rate limit reached")

// DefaultMaxConcurrentSteps is the default limit for parallel steps.
const DefaultMaxConcurrentSteps = 4

// DefaultStepWaitTime is how long Acquire waits for a slot.
const DefaultStepWaitTime = 30 * time.Second

// StepLimiter is a counting semaphore for import steps.
type StepLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
	total   atomic.Int64
}

// NewStepLimiter allows at most maxConcurrent steps at once. Acquire gives
// up after maxWait.
func NewStepLimiter(maxConcurrent int, maxWait time.Duration) *StepLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSteps
	}
	if maxWait <= 0 {
		maxWait = DefaultStepWaitTime
	}
	return &StepLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, maxWait passes or ctx is done.
// Each successful Acquire must be paired with one Release.
func (l *StepLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.taken()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManySteps
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *StepLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.taken()
		return true
	default:
		return false
	}
}

func (l *StepLimiter) taken() {
	l.active.Add(1)
	l.total.Add(1)
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *StepLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of steps holding a slot.
func (l *StepLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the slot count.
func (l *StepLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *StepLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no step holds a slot or ctx is done.
func (l *StepLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// StepLimiterStatus is a snapshot of the limiter for monitoring.
type StepLimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	TotalSteps    int64 `json:"total_steps"`
}

// Status returns the current limiter state.
func (l *StepLimiter) Status() StepLimiterStatus {
	return StepLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
		TotalSteps:    l.total.Load(),
	}
}
