package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/payimport/internal/core"
)

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Bad <file>", "Try again", "FILE002").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	got := buf.String()
	for _, want := range []string{"Bad &lt;file&gt;", "Try again", "Code: FILE002", `role="alert"`} {
		if !strings.Contains(got, want) {
			t.Errorf("ErrorAlert output missing %q: %s", want, got)
		}
	}
}

func TestErrorAlert_NoAction(t *testing.T) {
	var buf bytes.Buffer
	ErrorAlert("Oops", "", "ERR000").Render(context.Background(), &buf)
	if strings.Contains(buf.String(), "alert-action") {
		t.Errorf("empty action rendered: %s", buf.String())
	}
}

func TestJobProgress(t *testing.T) {
	tests := []struct {
		name     string
		job      *core.Job
		wantPoll bool
		wantText []string
	}{
		{
			name: "running",
			job: &core.Job{
				ID: "j1", FileName: "payments.csv", Status: core.JobRunning, Imported: 1200,
				State: core.ImportState{PerStep: 5, CurrentStep: 3, TotalRows: 12000},
			},
			wantPoll: true,
			wantText: []string{"payments.csv: 1,200 of 12,000 rows imported", `data-status="running"`},
		},
		{
			name: "complete",
			job: &core.Job{
				ID: "j2", FileName: "done.csv", Status: core.JobComplete, Imported: 12,
				State: core.ImportState{PerStep: 5, CurrentStep: 4, TotalRows: 12, Done: true},
			},
			wantText: []string{`value="100"`, "12 of 12 rows imported"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := JobProgress(tt.job).Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			got := buf.String()
			if strings.Contains(got, "hx-trigger") != tt.wantPoll {
				t.Errorf("polling = %v, want %v: %s", !tt.wantPoll, tt.wantPoll, got)
			}
			for _, want := range tt.wantText {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q: %s", want, got)
				}
			}
		})
	}
}
