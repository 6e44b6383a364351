package core

import (
	"context"
	"time"
)

// JobStatus is the lifecycle status of an import job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobComplete  JobStatus = "complete"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// MaxJobIssues caps how many row issues a job keeps.
var MaxJobIssues = 500

// Job is a persisted import run over one uploaded file.
type Job struct {
	ID          string       `json:"id"`
	FileName    string       `json:"fileName"`
	FilePath    string       `json:"-"`
	Format      string       `json:"format"`
	Mapping     FieldMapping `json:"mapping"`
	State       ImportState  `json:"state"`
	Status      JobStatus    `json:"status"`
	OperatorID  int64        `json:"operatorId"`
	ClientIP    string       `json:"clientIp,omitempty"`
	Imported    int          `json:"imported"`
	Issues      []RowIssue   `json:"issues,omitempty"`
	IssueCount  int          `json:"issueCount"`
	LastError   string       `json:"lastError,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Finished reports whether the job accepts no more steps.
func (j *Job) Finished() bool {
	switch j.Status {
	case JobComplete, JobCancelled, JobFailed:
		return true
	}
	return false
}

// Percentage returns the scheduler percentage for the job's state.
func (j *Job) Percentage() float64 {
	return NewScheduler(j.State, nil).PercentageComplete()
}

// recordStep folds a step report into the job.
func (j *Job) recordStep(report StepReport, now time.Time) {
	j.State = report.State
	j.Imported += report.Imported
	j.IssueCount += len(report.Issues)
	for _, is := range report.Issues {
		if len(j.Issues) >= MaxJobIssues {
			break
		}
		j.Issues = append(j.Issues, is)
	}
	if !report.More {
		j.State.Done = true
		j.Status = JobComplete
		j.CompletedAt = &now
	}
	j.UpdatedAt = now
}

// JobStore persists import jobs. SaveJob inserts or replaces by ID.
// GetJob returns an error wrapping ErrJobNotFound for unknown IDs.
// ListJobs returns jobs newest first.
type JobStore interface {
	SaveJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context) ([]*Job, error)
}
