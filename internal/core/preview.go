package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/payimport/internal/tabular"
)

// DefaultPreviewSamples is how many rows Preview builds.
const DefaultPreviewSamples = 5

// PreviewRow is one row built without saving.
type PreviewRow struct {
	Row     int        `json:"row"`
	Payment *Payment   `json:"payment"`
	Issues  []RowIssue `json:"issues,omitempty"`
}

// Preview is a read-only analysis of an upload.
type Preview struct {
	FileName         string          `json:"fileName"`
	Headers          []string        `json:"headers"`
	TotalRows        int             `json:"totalRows"`
	PerStep          int             `json:"perStep"`
	Steps            int             `json:"steps"`
	RowsSelected     int             `json:"rowsSelected"`
	SuggestedMapping FieldMapping    `json:"suggestedMapping"`
	Templates        []TemplateMatch `json:"templates,omitempty"`
	Samples          []PreviewRow    `json:"samples,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// Preview parses an upload and reports its headers, a suggested mapping,
// matching templates and how the scheduler will step through it. When
// mapping is non-empty the first rows are built with it against the live
// lookups but nothing is saved and no catalog entry is created.
func (s *Service) Preview(ctx context.Context, op Operator, fileName string, data []byte, mapping FieldMapping) (*Preview, error) {
	start := time.Now()

	if len(data) == 0 {
		return nil, fmt.Errorf("empty file: %s", fileName)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds limit of %d", len(data), s.cfg.MaxFileSize)
	}
	format, err := tabular.DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	table, err := tabular.ReadBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}

	rows := toRawRows(table.Rows)
	state := NewImportState(s.cfg.PerStep, len(rows))
	steps, selected := CountSteps(ctx, state, rows)

	p := &Preview{
		FileName:         fileName,
		Headers:          table.Headers,
		TotalRows:        len(rows),
		PerStep:          state.PerStep,
		Steps:            steps,
		RowsSelected:     selected,
		SuggestedMapping: AutoMap(table.Headers),
	}

	if s.templates != nil {
		matches, err := s.MatchTemplates(ctx, table.Headers)
		if err != nil {
			return nil, err
		}
		p.Templates = matches
	}

	if len(mapping.Mapped()) > 0 {
		if err := ValidateMapping(mapping, table.Headers); err != nil {
			return nil, err
		}
		samples, err := s.buildSamples(ctx, op, rows, mapping)
		if err != nil {
			return nil, err
		}
		p.Samples = samples
	}

	p.ProcessingTimeMs = time.Since(start).Milliseconds()
	return p, nil
}

func (s *Service) buildSamples(ctx context.Context, op Operator, rows []RawRow, mapping FieldMapping) ([]PreviewRow, error) {
	ps := &previewStore{Store: s.store}
	builder := NewBuilder(ps, s.gateways, NewResolver(ps, time.Minute), BuilderConfig{
		Format:   s.cfg.Format,
		TestMode: s.cfg.TestMode,
		Clock:    s.cfg.Clock,
	})

	n := min(len(rows), DefaultPreviewSamples)
	samples := make([]PreviewRow, 0, n)
	for i := 0; i < n; i++ {
		p, issues, err := builder.Build(ctx, RowInput{Index: i, Row: rows[i], Mapping: mapping, Operator: op})
		if err != nil {
			return nil, fmt.Errorf("preview row %d: %w", i, err)
		}
		samples = append(samples, PreviewRow{Row: i, Payment: p, Issues: issues})
	}
	return samples, nil
}

// CountSteps simulates an import from state and returns how many steps will
// report more work and how many rows they select.
func CountSteps(ctx context.Context, state ImportState, rows []RawRow) (steps, selected int) {
	sched := NewScheduler(state, rows)
	for {
		more, err := sched.ProcessStep(ctx, func(context.Context, int, RawRow) error { return nil })
		if err != nil || !more {
			return steps, selected
		}
		steps++
		selected += sched.Processed()
		sched.Advance()
	}
}

// previewStore reads through to a real store and discards every write.
type previewStore struct {
	Store
}

func (previewStore) SavePayment(context.Context, *Payment, SaveOptions) error { return nil }

func (previewStore) AddMeta(context.Context, int64, string, string, bool) (bool, error) {
	return true, nil
}

func (previewStore) UpdateMeta(context.Context, int64, string, string) (bool, error) {
	return true, nil
}

func (previewStore) DeleteMeta(context.Context, int64, string) (bool, error) { return true, nil }

func (previewStore) CreateItem(_ context.Context, title string, authorID int64) (CatalogItem, error) {
	return CatalogItem{Title: title, AuthorID: authorID}, nil
}
