package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/payimport/internal/tabular"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// StepTimeout is the maximum duration of one import step.
var StepTimeout = 2 * time.Minute

// rowsCacheTTL is how long parsed job files stay in memory between steps.
const rowsCacheTTL = 10 * time.Minute

// ServiceConfig holds the import settings of a Service.
type ServiceConfig struct {
	PerStep             int
	UploadsDir          string
	MaxFileSize         int64
	MaxConcurrent       int
	MaxWaitTime         time.Duration
	TestMode            bool
	Format              AmountFormat
	SuppressSideEffects bool
	CatalogCacheTTL     time.Duration
	Clock               Clock
}

// DefaultMaxFileSize is used when ServiceConfig.MaxFileSize is zero (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Service provides the payment import operations used by the HTTP and CLI
// frontends.
type Service struct {
	store     Store
	jobs      JobStore
	templates TemplateStore
	audit     AuditStore
	gateways  *GatewayRegistry
	resolver  *Resolver
	importer  *Importer
	limiter   *StepLimiter
	cfg       ServiceConfig

	rows *cache.Cache // job ID -> []RawRow

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a Service. The uploads directory is created if needed.
// A nil gateways registry uses the default gateways.
func NewService(store Store, jobs JobStore, templates TemplateStore, gateways *GatewayRegistry, cfg ServiceConfig) (*Service, error) {
	if cfg.PerStep <= 0 {
		cfg.PerStep = DefaultPerStep
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Clock == nil {
		cfg.Clock = timeNow
	}
	if cfg.Format == (AmountFormat{}) {
		cfg.Format = DefaultAmountFormat
	}
	if cfg.UploadsDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		cfg.UploadsDir = filepath.Join(wd, "uploads")
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	if gateways == nil {
		gateways = NewDefaultGatewayRegistry()
	}

	resolver := NewResolver(store, cfg.CatalogCacheTTL)
	builder := NewBuilder(store, gateways, resolver, BuilderConfig{
		Format:              cfg.Format,
		TestMode:            cfg.TestMode,
		SuppressSideEffects: cfg.SuppressSideEffects,
		Clock:               cfg.Clock,
	})

	return &Service{
		store:     store,
		jobs:      jobs,
		templates: templates,
		gateways:  gateways,
		resolver:  resolver,
		importer:  NewImporter(builder),
		limiter:   NewStepLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		cfg:       cfg,
		rows:      cache.New(rowsCacheTTL, 2*rowsCacheTTL),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Fields returns the canonical fields a mapping may use.
func (s *Service) Fields() []FieldInfo {
	return Fields
}

// Gateways returns the registered gateways.
func (s *Service) Gateways() []Gateway {
	return s.gateways.All()
}

// CreateJob stores an uploaded file and creates a pending import job for it.
// The operator must be allowed to import before anything is stored.
func (s *Service) CreateJob(ctx context.Context, op Operator, fileName string, data []byte, mapping FieldMapping) (*Job, error) {
	if !op.CanImport {
		return nil, ErrPermissionDenied
	}
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
	if err := ValidateMapping(mapping, table.Headers); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	path := filepath.Join(s.cfg.UploadsDir, id+strings.ToLower(filepath.Ext(fileName)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := s.cfg.Clock()
	job := &Job{
		ID:         id,
		FileName:   filepath.Base(fileName),
		FilePath:   path,
		Format:     string(format),
		Mapping:    mapping,
		State:      NewImportState(s.cfg.PerStep, table.Len()),
		Status:     JobPending,
		OperatorID: op.ID,
		ClientIP:   GetIPAddressFromContext(ctx),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("save job: %w", err)
	}
	s.rows.Set(id, toRawRows(table.Rows), cache.DefaultExpiration)
	s.logAudit(ctx, AuditEntry{Action: ActionJobCreate, JobID: id, OperatorID: op.ID, RowsAffected: table.Len(), Reason: job.FileName})

	slog.Info("import job created",
		"job_id", id,
		"file", job.FileName,
		"rows", table.Len(),
		"per_step", job.State.PerStep,
		"operator_id", op.ID,
	)
	return job, nil
}

// Job returns one job.
func (s *Service) Job(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid job ID %q: %w", id, ErrJobNotFound)
	}
	return s.jobs.GetJob(ctx, id)
}

// Jobs returns all jobs, newest first.
func (s *Service) Jobs(ctx context.Context) ([]*Job, error) {
	return s.jobs.ListJobs(ctx)
}

// RunStep runs the next step of a job for op and persists the new state.
func (s *Service) RunStep(ctx context.Context, op Operator, jobID string) (StepReport, error) {
	if !op.CanImport {
		return StepReport{}, ErrPermissionDenied
	}
	return s.runStep(ctx, op, jobID)
}

func (s *Service) runStep(ctx context.Context, op Operator, jobID string) (StepReport, error) {
	lock := s.jobLock(jobID)
	if !lock.TryLock() {
		return StepReport{}, ErrJobBusy
	}
	defer lock.Unlock()

	job, err := s.Job(ctx, jobID)
	if err != nil {
		return StepReport{}, err
	}
	if job.Finished() {
		return StepReport{State: job.State}, fmt.Errorf("%w: %s", ErrJobFinished, job.Status)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return StepReport{State: job.State}, err
	}
	defer s.limiter.Release()

	rows, err := s.loadRows(job)
	if err != nil {
		s.fail(ctx, job, err)
		return StepReport{State: job.State}, err
	}

	// A step runs to its batch boundary regardless of the caller's ctx;
	// only StepTimeout can cut it short.
	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), StepTimeout)
	defer cancel()

	report, err := s.importer.RunStep(stepCtx, StepInput{
		JobID:    job.ID,
		Operator: op,
		Mapping:  job.Mapping,
		Rows:     rows,
		State:    job.State,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Saved rows of a partial step would be imported again on retry.
			job.Imported += report.Imported
			s.fail(stepCtx, job, fmt.Errorf("step %d interrupted after %d rows: %w", report.Step, report.Imported, err))
		}
		return report, err
	}

	job.recordStep(report, s.cfg.Clock())
	job.LastError = ""
	if err := s.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		return report, fmt.Errorf("save job: %w", err)
	}
	if job.Status == JobComplete {
		s.release(job.ID)
		s.logAudit(ctx, AuditEntry{Action: ActionJobComplete, JobID: job.ID, OperatorID: job.OperatorID, RowsAffected: job.Imported})
		slog.Info("import job complete", "job_id", job.ID, "imported", job.Imported, "issues", job.IssueCount)
	}
	return report, nil
}

// Start marks a job for the background runner.
func (s *Service) Start(ctx context.Context, op Operator, jobID string) (*Job, error) {
	if !op.CanImport {
		return nil, ErrPermissionDenied
	}
	job, err := s.setStatus(ctx, jobID, JobRunning)
	if err == nil {
		s.logAudit(ctx, AuditEntry{Action: ActionJobStart, JobID: jobID, OperatorID: op.ID})
	}
	return job, err
}

// Cancel stops a job. Rows already imported stay imported.
func (s *Service) Cancel(ctx context.Context, op Operator, jobID string) (*Job, error) {
	if !op.CanImport {
		return nil, ErrPermissionDenied
	}
	job, err := s.setStatus(ctx, jobID, JobCancelled)
	if err == nil {
		s.release(jobID)
		s.logAudit(ctx, AuditEntry{Action: ActionJobCancel, JobID: jobID, OperatorID: op.ID, RowsAffected: job.Imported})
	}
	return job, err
}

// setStatus waits for an in-flight step of the job so the step's final save
// cannot overwrite the new status.
func (s *Service) setStatus(ctx context.Context, jobID string, status JobStatus) (*Job, error) {
	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Finished() {
		return job, fmt.Errorf("%w: %s", ErrJobFinished, job.Status)
	}
	job.Status = status
	job.UpdatedAt = s.cfg.Clock()
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	slog.Info("import job status changed", "job_id", job.ID, "status", status)
	return job, nil
}

// release drops the parsed rows and catalog lookups cached for a job.
func (s *Service) release(jobID string) {
	s.rows.Delete(jobID)
	s.resolver.ForgetScope(jobID)
}

func (s *Service) fail(ctx context.Context, job *Job, cause error) {
	s.release(job.ID)
	job.Status = JobFailed
	job.LastError = cause.Error()
	job.UpdatedAt = s.cfg.Clock()
	if err := s.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		slog.Error("save failed job", "job_id", job.ID, "error", err)
	}
	s.logAudit(ctx, AuditEntry{Action: ActionJobFail, JobID: job.ID, OperatorID: job.OperatorID, RowsAffected: job.Imported, Reason: job.LastError})
	slog.Warn("import job failed", "job_id", job.ID, "error", cause)
}

// Payment returns an imported payment.
func (s *Service) Payment(ctx context.Context, id int64) (*Payment, error) {
	if id <= 0 {
		return nil, ErrPaymentNotFound
	}
	return s.store.GetPayment(ctx, id)
}

// LimiterStatus reports step concurrency.
func (s *Service) LimiterStatus() StepLimiterStatus {
	return s.limiter.Status()
}

// WaitForSteps blocks until no step is running or ctx is done.
func (s *Service) WaitForSteps(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// jobLock returns the mutex that serializes steps of one job.
func (s *Service) jobLock(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[jobID] = l
	}
	return l
}

// loadRows returns the parsed rows of a job's file, reading it on a cache miss.
func (s *Service) loadRows(job *Job) ([]RawRow, error) {
	if v, ok := s.rows.Get(job.ID); ok {
		return v.([]RawRow), nil
	}
	table, err := tabular.ReadFile(job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	rows := toRawRows(table.Rows)
	s.rows.Set(job.ID, rows, cache.DefaultExpiration)
	return rows, nil
}

func toRawRows(rows []tabular.Row) []RawRow {
	out := make([]RawRow, len(rows))
	for i, r := range rows {
		out[i] = RawRow(r)
	}
	return out
}
