package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionJobCreate      AuditAction = "job_create"
	ActionJobStart       AuditAction = "job_start"
	ActionJobComplete    AuditAction = "job_complete"
	ActionJobCancel      AuditAction = "job_cancel"
	ActionJobFail        AuditAction = "job_fail"
	ActionTemplateCreate AuditAction = "template_create"
	ActionTemplateDelete AuditAction = "template_delete"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// DefaultAuditLimit is the page size used when a filter sets none.
const DefaultAuditLimit = 100

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	JobID        string        `json:"jobId,omitempty"`
	TemplateID   string        `json:"templateId,omitempty"`
	OperatorID   int64         `json:"operatorId,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditFilter contains filtering options for querying the audit log.
type AuditFilter struct {
	JobID  string
	Action AuditAction
	Limit  int
	Offset int
}

// AuditStore persists audit entries. ListAudit returns entries newest first.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionJobCreate, ActionJobComplete, ActionJobFail:
		return SeverityHigh
	case ActionTemplateCreate, ActionTemplateDelete:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// UseAuditLog makes the service record job and template changes in a.
func (s *Service) UseAuditLog(a AuditStore) {
	s.audit = a
}

// logAudit records an entry when an audit store is configured. Failures
// are logged and never fail the audited operation.
func (s *Service) logAudit(ctx context.Context, e AuditEntry) {
	if s.audit == nil {
		return
	}
	e.ID = uuid.New().String()
	e.Severity = determineSeverity(e.Action)
	if e.IPAddress == "" {
		e.IPAddress = GetIPAddressFromContext(ctx)
	}
	if e.OperatorID == 0 {
		if op, ok := OperatorFromContext(ctx); ok {
			e.OperatorID = op.ID
		}
	}
	e.CreatedAt = s.cfg.Clock()

	if err := s.audit.AppendAudit(context.WithoutCancel(ctx), &e); err != nil {
		slog.Error("audit log write failed", "action", e.Action, "job_id", e.JobID, "error", err)
	}
}

// AuditLog returns audit entries matching filter, newest first.
func (s *Service) AuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}
	return s.audit.ListAudit(ctx, filter)
}
