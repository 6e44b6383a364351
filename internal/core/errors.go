package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Compare with errors.Is.
var (
	// ErrPermissionDenied is returned before any row is processed when the
	// operator may not import payments.
	ErrPermissionDenied = errors.New("permission denied: operator cannot import payments")

	// ErrDuplicateTitle is wrapped by Catalog implementations when an entry
	// with the same title already exists.
	ErrDuplicateTitle = errors.New("catalog item title already exists")

	// ErrJobNotFound is returned for unknown import job IDs.
	ErrJobNotFound = errors.New("import job not found")

	// ErrTemplateNotFound is returned for unknown mapping template IDs.
	ErrTemplateNotFound = errors.New("mapping template not found")

	// ErrPaymentNotFound is returned by stores for unknown payment IDs.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrJobFinished is returned when a step is requested for a job that is
	// complete, cancelled or failed.
	ErrJobFinished = errors.New("import job already finished")

	// ErrJobBusy is returned when a step is requested while another step of
	// the same job is still running.
	ErrJobBusy = errors.New("import job step already in progress")
)

// IssueKind classifies a recovered row problem.
type IssueKind string

const (
	// RowFieldInvalid: the field was left unset or defaulted.
	RowFieldInvalid IssueKind = "row_field_invalid"
	// ReferenceNotFound: a customer or user reference was discarded.
	ReferenceNotFound IssueKind = "reference_not_found"
	// CatalogCreateFailed: one line item was skipped.
	CatalogCreateFailed IssueKind = "catalog_create_failed"
	// RecordSaveFailed: the row produced no payment.
	RecordSaveFailed IssueKind = "record_save_failed"
	// MetaWriteFailed: the payment was saved but not tagged with its job.
	MetaWriteFailed IssueKind = "meta_write_failed"
)

// RowIssue reports one recovered problem in an import row. Row is the
// zero-based index of the row in the input.
type RowIssue struct {
	Row   int       `json:"row"`
	Field Field     `json:"field,omitempty"`
	Kind  IssueKind `json:"kind"`
	Value string    `json:"value,omitempty"`
	Err   string    `json:"error,omitempty"`
}

func (i RowIssue) String() string {
	s := fmt.Sprintf("row %d: %s", i.Row, i.Kind)
	if i.Field != "" {
		s += fmt.Sprintf(" (%s=%q)", i.Field, i.Value)
	}
	if i.Err != "" {
		s += ": " + i.Err
	}
	return s
}
