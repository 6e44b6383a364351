package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/payimport/internal/core"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(id string, status core.JobStatus, at time.Time) *core.Job {
	return &core.Job{
		ID:        id,
		FileName:  id + ".csv",
		FilePath:  "/uploads/" + id + ".csv",
		Mapping:   core.FieldMapping{core.FieldTotal: "Amount"},
		State:     core.NewImportState(5, 12),
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// ============================================================================
// Jobs
// ============================================================================

func TestStore_SaveAndGetJob(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	job := testJob("a", core.JobRunning, now)
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	job.State.CurrentStep = 3
	job.Imported = 8
	job.UpdatedAt = now.Add(time.Minute)
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("second SaveJob() error = %v", err)
	}

	got, err := s.GetJob(ctx, "a")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.State.CurrentStep != 3 || got.Imported != 8 {
		t.Errorf("GetJob() state = %+v imported %d, want step 3 imported 8", got.State, got.Imported)
	}
	if got.FilePath != job.FilePath {
		t.Errorf("FilePath = %q, want %q", got.FilePath, job.FilePath)
	}
	if got.Mapping[core.FieldTotal] != "Amount" {
		t.Errorf("Mapping = %v, want total mapped to Amount", got.Mapping)
	}
}

func TestStore_GetJob_NotFound(t *testing.T) {
	s := openTest(t)
	if _, err := s.GetJob(context.Background(), "missing"); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("GetJob() error = %v, want ErrJobNotFound", err)
	}
}

func TestStore_ListJobs_NewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := s.SaveJob(ctx, testJob(id, core.JobComplete, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveJob(%s) error = %v", id, err)
		}
	}

	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(jobs) != len(want) {
		t.Fatalf("ListJobs() returned %d jobs, want %d", len(jobs), len(want))
	}
	for i, id := range want {
		if jobs[i].ID != id {
			t.Errorf("jobs[%d].ID = %q, want %q", i, jobs[i].ID, id)
		}
	}
}

func TestStore_LatestJob(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, ok, err := s.LatestJob(ctx); err != nil || ok {
		t.Fatalf("LatestJob() on empty store = %v, %v; want false, nil", ok, err)
	}

	s.SaveJob(ctx, testJob("done", core.JobComplete, base.Add(2*time.Hour)))
	s.SaveJob(ctx, testJob("paused", core.JobPending, base))
	s.SaveJob(ctx, testJob("running", core.JobRunning, base.Add(time.Hour)))

	got, ok, err := s.LatestJob(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestJob() = %v, %v", ok, err)
	}
	if got.ID != "running" {
		t.Errorf("LatestJob().ID = %q, want running", got.ID)
	}
}

func TestStore_Prune(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	s.SaveJob(ctx, testJob("old-done", core.JobComplete, base))
	s.SaveJob(ctx, testJob("old-running", core.JobRunning, base))
	s.SaveJob(ctx, testJob("new-done", core.JobCancelled, base.Add(48*time.Hour)))

	n, err := s.Prune(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, err := s.GetJob(ctx, "old-done"); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("old finished job survived prune: %v", err)
	}
	if _, err := s.GetJob(ctx, "old-running"); err != nil {
		t.Errorf("unfinished job was pruned: %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.SaveJob(ctx, testJob("persisted", core.JobRunning, time.Now())); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetJob(ctx, "persisted"); err != nil {
		t.Errorf("GetJob() after reopen error = %v", err)
	}
}

// ============================================================================
// Audit
// ============================================================================

func TestStore_ListAudit(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	entries := []core.AuditEntry{
		{ID: "1", Action: core.ActionJobCreate, JobID: "a", CreatedAt: base},
		{ID: "2", Action: core.ActionJobStart, JobID: "a", CreatedAt: base.Add(time.Second)},
		{ID: "3", Action: core.ActionJobCreate, JobID: "b", CreatedAt: base.Add(2 * time.Second)},
		{ID: "4", Action: core.ActionJobComplete, JobID: "a", RowsAffected: 12, CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range entries {
		if err := s.AppendAudit(ctx, &entries[i]); err != nil {
			t.Fatalf("AppendAudit() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter core.AuditFilter
		want   []string
	}{
		{"all", core.AuditFilter{}, []string{"4", "3", "2", "1"}},
		{"by job", core.AuditFilter{JobID: "a"}, []string{"4", "2", "1"}},
		{"by action", core.AuditFilter{Action: core.ActionJobCreate}, []string{"3", "1"}},
		{"job and action", core.AuditFilter{JobID: "a", Action: core.ActionJobCreate}, []string{"1"}},
		{"limit", core.AuditFilter{Limit: 2}, []string{"4", "3"}},
		{"offset", core.AuditFilter{Limit: 2, Offset: 2}, []string{"2", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAudit(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAudit() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListAudit() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("entry %d ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}

	got, _ := s.ListAudit(ctx, core.AuditFilter{Action: core.ActionJobComplete})
	if len(got) != 1 || got[0].RowsAffected != 12 {
		t.Errorf("complete entry = %+v, want rows affected 12", got)
	}
}
