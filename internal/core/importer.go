package core

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/payimport/internal/logging"
)

// StepInput is everything one import step needs.
type StepInput struct {
	JobID    string
	Operator Operator
	Mapping  FieldMapping
	Rows     []RawRow
	State    ImportState
}

// StepReport summarises one executed step.
type StepReport struct {
	Step       int           `json:"step"`
	More       bool          `json:"more"`
	Processed  int           `json:"processed"`
	Imported   int           `json:"imported"`
	Percentage float64       `json:"percentage"`
	Issues     []RowIssue    `json:"issues,omitempty"`
	State      ImportState   `json:"state"`
	PaymentIDs []int64       `json:"paymentIds,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Importer runs import steps against a Builder.
type Importer struct {
	builder *Builder
}

// NewImporter creates an importer.
func NewImporter(builder *Builder) *Importer {
	return &Importer{builder: builder}
}

// RunStep checks the operator, processes the current step, computes the
// percentage and advances the state when the step reported more work. Row
// failures are reported in the issues; only a permission failure or a
// cancelled ctx returns an error. On cancellation the returned report
// carries the unadvanced state.
func (imp *Importer) RunStep(ctx context.Context, in StepInput) (StepReport, error) {
	if !in.Operator.CanImport {
		return StepReport{State: in.State}, ErrPermissionDenied
	}

	start := time.Now()
	sched := NewScheduler(in.State, in.Rows)
	report := StepReport{Step: sched.State().CurrentStep}
	logger := logging.ForJob(ctx, in.JobID, report.Step)

	more, err := sched.ProcessStep(ctx, func(ctx context.Context, index int, row RawRow) error {
		p, issues, err := imp.builder.Build(ctx, RowInput{
			JobID:    in.JobID,
			Index:    index,
			Row:      row,
			Mapping:  in.Mapping,
			Operator: in.Operator,
		})
		for _, is := range issues {
			logger.Debug("row issue", "row", is.Row, "field", is.Field, "kind", is.Kind, "value", is.Value, "error", is.Err)
		}
		report.Issues = append(report.Issues, issues...)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			logger.Warn("row save failed", "row", index, "error", err)
			report.Issues = append(report.Issues, RowIssue{Row: index, Kind: RecordSaveFailed, Err: err.Error()})
			return nil
		}

		report.Imported++
		report.PaymentIDs = append(report.PaymentIDs, p.ID)
		return nil
	})
	report.Processed = sched.Processed()
	if err != nil {
		report.State = in.State
		report.Duration = time.Since(start)
		return report, err
	}

	report.More = more
	report.Percentage = sched.PercentageComplete()
	if more {
		sched.Advance()
	}
	report.State = sched.State()
	report.Duration = time.Since(start)

	logger.Info("import step finished",
		"processed", report.Processed,
		"imported", report.Imported,
		"issues", len(report.Issues),
		"more", report.More,
		"percentage", report.Percentage,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
