package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/JonMunkholm/payimport/internal/core"
)

// ============================================================================
// Jobs
// ============================================================================

// SaveJob inserts or replaces a job.
func (s *Store) SaveJob(_ context.Context, j *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

// GetJob returns a copy of a job.
func (s *Store) GetJob(_ context.Context, id string) (*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, core.ErrJobNotFound)
	}
	cp := cloneJob(&j)
	return &cp, nil
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(_ context.Context) ([]*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := cloneJob(&j)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID > out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

func cloneJob(j *core.Job) core.Job {
	cp := *j
	cp.Mapping = cloneMapping(j.Mapping)
	cp.Issues = append([]core.RowIssue(nil), j.Issues...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

func cloneMapping(m core.FieldMapping) core.FieldMapping {
	if m == nil {
		return nil
	}
	cp := make(core.FieldMapping, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// ============================================================================
// Templates
// ============================================================================

// SaveTemplate inserts or replaces a template.
func (s *Store) SaveTemplate(_ context.Context, t *core.MappingTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = cloneTemplate(t)
	return nil
}

// GetTemplate returns a copy of a template.
func (s *Store) GetTemplate(_ context.Context, id string) (*core.MappingTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, core.ErrTemplateNotFound)
	}
	cp := cloneTemplate(&t)
	return &cp, nil
}

// ListTemplates returns all templates in no particular order.
func (s *Store) ListTemplates(_ context.Context) ([]core.MappingTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.MappingTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, cloneTemplate(&t))
	}
	return out, nil
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, core.ErrTemplateNotFound)
	}
	delete(s.templates, id)
	return nil
}

func cloneTemplate(t *core.MappingTemplate) core.MappingTemplate {
	cp := *t
	cp.Mapping = cloneMapping(t.Mapping)
	cp.Headers = append([]string(nil), t.Headers...)
	return cp
}

// ============================================================================
// Audit
// ============================================================================

// AppendAudit records an audit entry.
func (s *Store) AppendAudit(_ context.Context, e *core.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *e)
	return nil
}

// ListAudit returns matching entries newest first.
func (s *Store) ListAudit(_ context.Context, filter core.AuditFilter) ([]core.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = core.DefaultAuditLimit
	}

	var out []core.AuditEntry
	skipped := 0
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.audit[i]
		if filter.JobID != "" && e.JobID != filter.JobID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
