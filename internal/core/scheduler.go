package core

// scheduler.go partitions an import into fixed-size steps.
//
// Progress lives entirely in ImportState, so a scheduler can be rebuilt from
// a persisted state and the same current step always selects the same rows.
// The caller drives the loop: ProcessStep, then PercentageComplete, then
// Advance when ProcessStep reported more work.
//
// Row selection keeps the historical batch arithmetic: rows whose 1-based
// index is below the offset are skipped and a counter starting at 1 stops the
// batch when it reaches PerStep. Each step therefore imports PerStep-1 rows
// and the row at 1-based index PerStep*k-1 (k >= 2) is never selected.

import (
	"context"
	"math"
)

// DefaultPerStep is the number of rows a step is sized for.
const DefaultPerStep = 5

// Phases of an import.
const (
	PhaseNotStarted = "not_started"
	PhaseInProgress = "in_progress"
	PhaseDone       = "done"
)

// ImportState is the resumable progress of one import.
type ImportState struct {
	PerStep     int  `json:"perStep" yaml:"per_step"`
	CurrentStep int  `json:"currentStep" yaml:"current_step"`
	TotalRows   int  `json:"totalRows" yaml:"total_rows"`
	Done        bool `json:"done" yaml:"done"`
}

// NewImportState returns the state of an import that has not started.
func NewImportState(perStep, totalRows int) ImportState {
	if perStep <= 0 {
		perStep = DefaultPerStep
	}
	return ImportState{PerStep: perStep, CurrentStep: 1, TotalRows: totalRows}
}

// Offset returns the 1-based row index the current step starts from.
func (s ImportState) Offset() int {
	if s.CurrentStep > 1 {
		return s.PerStep * (s.CurrentStep - 1)
	}
	return 0
}

// Phase reports where the import is in its lifecycle.
func (s ImportState) Phase() string {
	switch {
	case s.Done:
		return PhaseDone
	case s.CurrentStep <= 1:
		return PhaseNotStarted
	default:
		return PhaseInProgress
	}
}

// RowFunc handles one selected row. index is zero-based. A non-nil error
// stops the step.
type RowFunc func(ctx context.Context, index int, row RawRow) error

// Scheduler selects the rows of each step.
type Scheduler struct {
	state     ImportState
	rows      []RawRow
	processed int
}

// NewScheduler creates a scheduler over rows resuming from state.
func NewScheduler(state ImportState, rows []RawRow) *Scheduler {
	if state.PerStep <= 0 {
		state.PerStep = DefaultPerStep
	}
	if state.CurrentStep < 1 {
		state.CurrentStep = 1
	}
	return &Scheduler{state: state, rows: rows}
}

// State returns the current import state.
func (s *Scheduler) State() ImportState {
	return s.state
}

// Processed returns how many rows the last ProcessStep call handed to fn.
func (s *Scheduler) Processed() int {
	return s.processed
}

// ProcessStep runs fn over the rows of the current step. It returns true
// while the import is not done and there is input, false once the offset
// has passed the total row count. ctx is checked before every row; when it
// is cancelled the step stops with ctx.Err() and the state is left as is.
func (s *Scheduler) ProcessStep(ctx context.Context, fn RowFunc) (bool, error) {
	s.processed = 0

	offset := s.state.Offset()
	if offset > s.state.TotalRows {
		s.state.Done = true
	}
	if s.state.Done || len(s.rows) == 0 {
		return false, nil
	}

	i := 1
	for key, row := range s.rows {
		if key+1 < offset {
			continue
		}
		if i >= s.state.PerStep {
			break
		}
		if err := ctx.Err(); err != nil {
			return true, err
		}
		if err := fn(ctx, key, row); err != nil {
			return true, err
		}
		s.processed++
		i++
	}

	return true, nil
}

// PercentageComplete returns min(100, current_step / total_rows * 100).
// The numerator is the step number, not the rows processed. It is 0 for an
// empty import.
func (s *Scheduler) PercentageComplete() float64 {
	if s.state.TotalRows <= 0 {
		return 0
	}
	pct := float64(s.state.CurrentStep) / float64(s.state.TotalRows) * 100
	return math.Min(100, pct)
}

// Advance moves to the next step.
func (s *Scheduler) Advance() {
	s.state.CurrentStep++
}
