package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},

		// Sentinels, wrapped or not
		{name: "permission denied", err: ErrPermissionDenied, wantCode: "AUTH001"},
		{name: "wrapped job not found", err: fmt.Errorf("invalid job ID %q: %w", "x", ErrJobNotFound), wantCode: "JOB001"},
		{name: "job finished", err: fmt.Errorf("%w: complete", ErrJobFinished), wantCode: "JOB002"},
		{name: "job busy", err: ErrJobBusy, wantCode: "JOB003"},
		{name: "template not found", err: ErrTemplateNotFound, wantCode: "JOB004"},
		{name: "payment not found", err: ErrPaymentNotFound, wantCode: "JOB005"},
		{name: "too many steps wins over rate limit pattern", err: ErrTooManySteps, wantCode: "RATE002"},

		// Patterns
		{name: "context canceled", err: context.Canceled, wantCode: "JOB006"},
		{name: "deadline before timeout", err: errors.New("context deadline exceeded (timeout)"), wantCode: "JOB007"},
		{name: "column not found", err: errors.New(`column not found: "Amount" mapped to total`), wantCode: "IMP004"},
		{name: "unknown field", err: errors.New(`invalid enum: unknown field "bogus"`), wantCode: "IMP005"},
		{name: "required template name", err: errors.New("required field: template name"), wantCode: "IMP003"},
		{name: "invalid csv", err: errors.New("parse a.csv: invalid csv: record on line 2"), wantCode: "FILE002"},
		{name: "invalid spreadsheet", err: errors.New("invalid spreadsheet: open workbook"), wantCode: "FILE002"},
		{name: "empty file", err: errors.New("empty file: no header row found"), wantCode: "FILE005"},
		{name: "file too large", err: errors.New("file too large: 200 bytes"), wantCode: "FILE001"},
		{name: "duplicate key", err: errors.New("ERROR: duplicate key value violates unique constraint"), wantCode: "DB001"},
		{name: "unique name violation", err: errors.New(`template "x" violates unique name`), wantCode: "DB002"},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantCode: "DB004"},
		{name: "unauthorized", err: errors.New("unauthorized: missing API key"), wantCode: "AUTH002"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "case insensitive", err: errors.New("DUPLICATE KEY value"), wantCode: "DB001"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrJobBusy)

	expected := "A step of this import is already running (Code: JOB003). Wait for the current step to finish"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "sentinel is user facing", err: ErrPermissionDenied, want: true},
		{name: "known pattern is user facing", err: errors.New("duplicate key"), want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("run step: %w", ErrJobNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Import job not found" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrJobNotFound) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
