// Package core provides the business logic for payment import operations.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Users quote the code; support staff look it up here.
//
// # Authorization (AUTH001-AUTH099)
//
//	AUTH001 - Permission denied: You do not have permission to import payments
//	          Action: Ask an administrator for import access
//	          Matches: ErrPermissionDenied, "permission denied"
//
//	AUTH002 - Unauthorized: Missing or invalid credentials
//	          Action: Sign in again or check your API key
//	          Matches: "unauthorized", "invalid token"
//
// # Import Jobs (JOB001-JOB099)
//
//	JOB001 - Job not found: Import job not found
//	         Action: Check the job ID or start a new import
//	         Matches: ErrJobNotFound
//
//	JOB002 - Job finished: This import has already finished
//	         Action: Start a new import to import the file again
//	         Matches: ErrJobFinished
//
//	JOB003 - Step running: A step of this import is already running
//	         Action: Wait for the current step to finish
//	         Matches: ErrJobBusy
//
//	JOB004 - Template not found: Mapping template not found
//	         Action: Refresh the template list
//	         Matches: ErrTemplateNotFound
//
//	JOB005 - Payment not found: Payment not found
//	         Action: Check the payment ID
//	         Matches: ErrPaymentNotFound
//
//	JOB006 - Request cancelled: Request was cancelled
//	         Matches: "context canceled"
//
//	JOB007 - Request timeout: Request timed out
//	         Matches: "context deadline exceeded"
//
// # Mapping and Values (IMP001-IMP099)
//
//	IMP001 - Invalid number          Matches: "invalid number"
//	IMP002 - Invalid date            Matches: "invalid date"
//	IMP003 - Required field          Matches: "required field"
//	IMP004 - Column not found        Matches: "column not found"
//	IMP005 - Unknown field           Matches: "invalid enum"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large         Matches: "file too large"
//	FILE002 - Invalid file           Matches: "invalid csv", "invalid spreadsheet"
//	FILE003 - Encoding error         Matches: "encoding error"
//	FILE004 - No file                Matches: "no file provided"
//	FILE005 - Empty file             Matches: "empty file"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key            Matches: "duplicate key"
//	DB002 - Unique constraint        Matches: "unique constraint", "violates unique"
//	DB003 - Foreign key              Matches: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused       Matches: "connection refused"
//	DB005 - Connection reset         Matches: "connection reset"
//	DB006 - Timeout                  Matches: "timeout"
//	DB007 - Deadlock                 Matches: "deadlock"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited           Matches: "rate limit"
//	RATE002 - Import system busy     Matches: ErrTooManySteps
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Matching
//
// Sentinel errors are matched first with errors.Is. Remaining errors are
// matched case-insensitively with strings.Contains against the pattern list;
// the first matching pattern wins, so specific patterns come first.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessages maps sentinel errors to user messages.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrPermissionDenied, UserMessage{"You do not have permission to import payments", "Ask an administrator for import access", "AUTH001"}},
	{ErrJobNotFound, UserMessage{"Import job not found", "Check the job ID or start a new import", "JOB001"}},
	{ErrJobFinished, UserMessage{"This import has already finished", "Start a new import to import the file again", "JOB002"}},
	{ErrJobBusy, UserMessage{"A step of this import is already running", "Wait for the current step to finish", "JOB003"}},
	{ErrTemplateNotFound, UserMessage{"Mapping template not found", "Refresh the template list", "JOB004"}},
	{ErrPaymentNotFound, UserMessage{"Payment not found", "Check the payment ID", "JOB005"}},
	{ErrTooManySteps, UserMessage{"The import system is busy with other imports", "Please wait a moment and try again", "RATE002"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Authorization (AUTH)
	// =========================================================================
	{"permission denied", UserMessage{"You do not have permission to import payments", "Ask an administrator for import access", "AUTH001"}},
	{"unauthorized", UserMessage{"Missing or invalid credentials", "Sign in again or check your API key", "AUTH002"}},
	{"invalid token", UserMessage{"Missing or invalid credentials", "Sign in again or check your API key", "AUTH002"}},

	// =========================================================================
	// Request lifecycle (JOB)
	// Checked before the generic "timeout" database pattern.
	// =========================================================================
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "JOB006"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller step size or try again later", "JOB007"}},

	// =========================================================================
	// Mapping and values (IMP)
	// =========================================================================
	{"invalid number", UserMessage{"Invalid number format detected", "Use plain amounts such as 1234.56", "IMP001"}},
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "IMP002"}},
	{"required field", UserMessage{"A required value is missing", "Fill in the highlighted field and try again", "IMP003"}},
	{"column not found", UserMessage{"A mapped column is not in the file", "Check the mapping against the file's header row", "IMP004"}},
	{"invalid enum", UserMessage{"The mapping uses an unknown field", "Choose fields from the field list", "IMP005"}},

	// =========================================================================
	// File errors (FILE)
	// =========================================================================
	{"file too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure file is comma-separated with consistent columns", "FILE002"}},
	{"invalid spreadsheet", UserMessage{"File is not a valid spreadsheet", "Save the workbook as .xlsx and try again", "FILE002"}},
	{"encoding error", UserMessage{"File contains invalid characters", "Save file as UTF-8 encoding", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV or XLSX file to import", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Please upload a file with a header row and data rows", "FILE005"}},

	// =========================================================================
	// Database (DB)
	// =========================================================================
	{"duplicate key", UserMessage{"A record with this ID already exists", "Check the file for rows that were imported before", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Choose a different name or value", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Ensure referenced records exist first", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Ensure referenced records exist first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// =========================================================================
	// Rate limiting (RATE)
	// =========================================================================
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Sentinel
// errors are recognised through wrapping; other errors by message pattern.
// If nothing matches, code ERR000 is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("step: %w", ErrJobBusy))
//	// msg.Code == "JOB003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
