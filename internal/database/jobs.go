package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/payimport/internal/core"
)

// ============================================================================
// Jobs
// ============================================================================

// SaveJob inserts or replaces a job. The job is stored as a JSON document
// next to the columns the store filters and sorts on.
func (s *Store) SaveJob(ctx context.Context, j *core.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO import_jobs (id, status, file_path, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, file_path = EXCLUDED.file_path,
			data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		j.ID, string(j.Status), j.FilePath, data, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob returns one job.
func (s *Store) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var (
		path string
		data []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT file_path, data FROM import_jobs WHERE id = $1`, id).Scan(&path, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, core.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(path, data)
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]*core.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT file_path, data FROM import_jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*core.Job, 0)
	for rows.Next() {
		var (
			path string
			data []byte
		)
		if err := rows.Scan(&path, &data); err != nil {
			return nil, err
		}
		j, err := decodeJob(path, data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func decodeJob(path string, data []byte) (*core.Job, error) {
	var j core.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	j.FilePath = path
	return &j, nil
}

// ============================================================================
// Templates
// ============================================================================

// SaveTemplate inserts or replaces a template.
func (s *Store) SaveTemplate(ctx context.Context, t *core.MappingTemplate) error {
	mapping, err := json.Marshal(t.Mapping)
	if err != nil {
		return fmt.Errorf("encode template mapping: %w", err)
	}
	headers := t.Headers
	if headers == nil {
		headers = []string{}
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO mapping_templates (id, name, mapping, headers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, mapping = EXCLUDED.mapping,
			headers = EXCLUDED.headers, updated_at = EXCLUDED.updated_at`,
		t.ID, t.Name, mapping, headers, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save template %s: %w", t.Name, err)
	}
	return nil
}

const templateColumns = `id::text, name, mapping, headers, created_at, updated_at`

// GetTemplate returns one template.
func (s *Store) GetTemplate(ctx context.Context, id string) (*core.MappingTemplate, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM mapping_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, core.ErrTemplateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns all templates.
func (s *Store) ListTemplates(ctx context.Context) ([]core.MappingTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM mapping_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]core.MappingTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mapping_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", id, core.ErrTemplateNotFound)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*core.MappingTemplate, error) {
	var (
		t       core.MappingTemplate
		mapping []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &mapping, &t.Headers, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mapping, &t.Mapping); err != nil {
		return nil, fmt.Errorf("decode template mapping: %w", err)
	}
	return &t, nil
}

// ============================================================================
// Audit
// ============================================================================

// AppendAudit records an audit entry.
func (s *Store) AppendAudit(ctx context.Context, e *core.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO import_audit_log
		(id, action, severity, job_id, template_id, operator_id, ip_address, rows_affected, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Action), string(e.Severity), e.JobID, e.TemplateID, e.OperatorID,
		e.IPAddress, e.RowsAffected, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns matching entries newest first.
func (s *Store) ListAudit(ctx context.Context, filter core.AuditFilter) ([]core.AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = core.DefaultAuditLimit
	}

	wb := NewWhereBuilder()
	wb.Add("job_id", filter.JobID)
	wb.Add("action", string(filter.Action))
	whereClause, args := wb.Build()

	query := `SELECT id::text, action, severity, job_id, template_id, operator_id, ip_address,
		rows_affected, reason, created_at
		FROM import_audit_log` + whereClause + ` ORDER BY created_at DESC, id DESC LIMIT $` +
		fmt.Sprintf("%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		var (
			e                core.AuditEntry
			action, severity string
		)
		err := rows.Scan(&e.ID, &action, &severity, &e.JobID, &e.TemplateID, &e.OperatorID,
			&e.IPAddress, &e.RowsAffected, &e.Reason, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Action = core.AuditAction(action)
		e.Severity = core.AuditSeverity(severity)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
