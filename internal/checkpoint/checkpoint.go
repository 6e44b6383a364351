// Package checkpoint keeps CLI import jobs in a local SQLite file so an
// interrupted run can resume from the last completed step.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/payimport/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	file_path  TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	job_id     TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_job_idx ON audit_log (job_id, created_at);
`

// Store is a JobStore and AuditStore on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ core.JobStore   = (*Store)(nil)
	_ core.AuditStore = (*Store)(nil)
)

// Open opens or creates the checkpoint file at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint tables: %w", err)
	}
	slog.Debug("checkpoint store ready", "path", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveJob inserts or replaces a job.
func (s *Store) SaveJob(ctx context.Context, j *core.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO jobs (id, status, file_path, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, file_path = excluded.file_path,
			data = excluded.data, updated_at = excluded.updated_at`,
		j.ID, string(j.Status), j.FilePath, string(data), j.CreatedAt.UnixNano(), j.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob returns one job.
func (s *Store) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var path, data string
	err := s.db.QueryRowContext(ctx, `SELECT file_path, data FROM jobs WHERE id = ?`, id).Scan(&path, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, core.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(path, data)
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]*core.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, data FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*core.Job, 0)
	for rows.Next() {
		var path, data string
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

func decodeJob(path, data string) (*core.Job, error) {
	var j core.Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	j.FilePath = path
	return &j, nil
}

// AppendAudit records an audit entry.
func (s *Store) AppendAudit(ctx context.Context, e *core.AuditEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_log (id, action, job_id, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.JobID, string(data), e.CreatedAt.UnixNano())
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
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM audit_log
		WHERE (? = '' OR job_id = ?) AND (? = '' OR action = ?)
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		filter.JobID, filter.JobID, string(filter.Action), string(filter.Action), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e core.AuditEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestJob returns the most recently updated job that is not finished, or
// false when there is none.
func (s *Store) LatestJob(ctx context.Context) (*core.Job, bool, error) {
	var path, data string
	err := s.db.QueryRowContext(ctx, `SELECT file_path, data FROM jobs
		WHERE status IN (?, ?) ORDER BY updated_at DESC LIMIT 1`,
		string(core.JobPending), string(core.JobRunning)).Scan(&path, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("latest job: %w", err)
	}
	j, err := decodeJob(path, data)
	if err != nil {
		return nil, false, err
	}
	return j, true, nil
}

// Prune deletes finished jobs last updated before cutoff and reports how
// many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status NOT IN (?, ?) AND updated_at < ?`,
		string(core.JobPending), string(core.JobRunning), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}
