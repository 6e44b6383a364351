package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/payimport/internal/checkpoint"
	"github.com/JonMunkholm/payimport/internal/config"
	"github.com/JonMunkholm/payimport/internal/core"
)

// ============================================================================
// Test Helpers
// ============================================================================

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand("1.2.3")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// writeOrders writes a CSV with n order rows and a matching mapping file.
func writeOrders(t *testing.T, dir string, n int) (csvPath, mappingPath string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Number,Order Total,Status\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,%d.00,complete\n", 1000+i, i)
	}
	csvPath = filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(csvPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	mappingPath = filepath.Join(dir, "orders.yaml")
	mf := config.NewMappingFile("orders", core.FieldMapping{
		core.FieldNumber: "Number",
		core.FieldTotal:  "Order Total",
		core.FieldStatus: "Status",
	})
	if err := config.WriteMappingFile(mappingPath, mf); err != nil {
		t.Fatal(err)
	}
	return csvPath, mappingPath
}

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "memory")
}

// ============================================================================
// version / automap
// ============================================================================

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != "payimport 1.2.3\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestAutoMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	os.WriteFile(path, []byte("Order Total,E-mail,Notes\n10.00,a@example.com,gift\n"), 0o644)

	out, errOut, err := execute(t, "automap", "--file", path)
	if err != nil {
		t.Fatalf("automap error = %v", err)
	}
	for _, want := range []string{"name: export", "total: Order Total", "email: E-mail"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "unmapped column: Notes") {
		t.Errorf("stderr = %q, want unmapped Notes", errOut)
	}
}

func TestAutoMap_WritesLoadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	os.WriteFile(path, []byte("Amount,Payment Date\n1,2024-01-15\n"), 0o644)
	outPath := filepath.Join(dir, "export.yaml")

	if _, _, err := execute(t, "automap", "--file", path, "--out", outPath, "--per-step", "10"); err != nil {
		t.Fatalf("automap error = %v", err)
	}

	mf, err := config.LoadMappingFile(outPath)
	if err != nil {
		t.Fatalf("LoadMappingFile() error = %v", err)
	}
	m, _ := mf.FieldMapping()
	if m[core.FieldTotal] != "Amount" || m[core.FieldDate] != "Payment Date" || mf.PerStep != 10 {
		t.Errorf("mapping = %v per_step %d", m, mf.PerStep)
	}
}

func TestAutoMap_RequiresFile(t *testing.T) {
	if _, _, err := execute(t, "automap"); err == nil {
		t.Error("automap without --file succeeded")
	}
}

// ============================================================================
// run / step / status
// ============================================================================

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	csvPath, mappingPath := writeOrders(t, dir, 3)
	statePath := filepath.Join(dir, "state.db")

	out, _, err := execute(t, "run", "--file", csvPath, "--mapping", mappingPath, "--dry-run", "--state", statePath)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "dry run") || !strings.Contains(out, "complete: imported 3 payments") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Errorf("dry run created the checkpoint file (stat err %v)", err)
	}
}

func TestRun_DryRunNeedsFile(t *testing.T) {
	if _, _, err := execute(t, "run", "--dry-run"); err == nil {
		t.Error("run --dry-run without --file succeeded")
	}
}

func TestRun_AutoMapsWithoutMappingFile(t *testing.T) {
	memoryEnv(t)
	dir := t.TempDir()
	csvPath, _ := writeOrders(t, dir, 2)

	out, _, err := execute(t, "run", "--file", csvPath, "--state", filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "auto-mapped 3 of 3 columns") || !strings.Contains(out, "imported 2 payments") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	memoryEnv(t)
	dir := t.TempDir()
	csvPath, mappingPath := writeOrders(t, dir, 12)
	statePath := filepath.Join(dir, "state.db")

	out, _, err := execute(t, "run", "--file", csvPath, "--mapping", mappingPath,
		"--per-step", "5", "--steps", "1", "--state", statePath)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "step 1: 4 rows, 4 imported") || !strings.Contains(out, "resume with") {
		t.Errorf("first run output:\n%s", out)
	}

	out, _, err = execute(t, "step", "--state", statePath)
	if err != nil {
		t.Fatalf("step error = %v", err)
	}
	if !strings.Contains(out, "step 2: 4 rows") {
		t.Errorf("step output:\n%s", out)
	}

	out, _, err = execute(t, "run", "--state", statePath)
	if err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if !strings.Contains(out, "step 3: 3 rows") || !strings.Contains(out, "complete: imported 3 payments") {
		t.Errorf("resume output:\n%s", out)
	}

	ckpt, err := checkpoint.Open(statePath)
	if err != nil {
		t.Fatal(err)
	}
	jobs, _ := ckpt.ListJobs(context.Background())
	ckpt.Close()
	if len(jobs) != 1 {
		t.Fatalf("checkpoint has %d jobs, want 1", len(jobs))
	}
	if job := jobs[0]; job.Status != core.JobComplete || job.Imported != 11 {
		t.Errorf("job = %s with %d imported, want complete with 11", job.Status, job.Imported)
	}

	// Nothing is left to resume.
	if _, _, err := execute(t, "run", "--state", statePath); err == nil || !strings.Contains(err.Error(), "nothing to resume") {
		t.Errorf("second resume error = %v, want nothing to resume", err)
	}
	if _, _, err := execute(t, "step", "--job", jobs[0].ID, "--state", statePath); err == nil {
		t.Error("step of a complete job succeeded")
	}

	out, _, err = execute(t, "status", "--job", jobs[0].ID, "--state", statePath)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"complete", "11 of 12 rows imported", "(100%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, _, err = execute(t, "status", "--state", statePath, "--prune", "1ns")
	if err != nil {
		t.Fatalf("status --prune error = %v", err)
	}
	if !strings.Contains(out, "pruned 1 finished jobs") || !strings.Contains(out, "no jobs") {
		t.Errorf("prune output:\n%s", out)
	}
}

func TestStatus_ListsJobs(t *testing.T) {
	memoryEnv(t)
	dir := t.TempDir()
	csvPath, mappingPath := writeOrders(t, dir, 12)
	statePath := filepath.Join(dir, "state.db")

	if _, _, err := execute(t, "run", "--file", csvPath, "--mapping", mappingPath, "--steps", "1", "--state", statePath); err != nil {
		t.Fatalf("run error = %v", err)
	}
	out, _, err := execute(t, "status", "--state", statePath)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "orders.csv") || !strings.Contains(out, "pending") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestWithFormat(t *testing.T) {
	tests := []struct {
		name, format, want string
		wantErr            bool
	}{
		{"orders.csv", "", "orders.csv", false},
		{"orders.txt", "csv", "orders.csv", false},
		{"orders.CSV", "csv", "orders.CSV", false},
		{"export", "xlsx", "export.xlsx", false},
		{"orders.csv", "pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.format, func(t *testing.T) {
			got, err := withFormat(tt.name, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("withFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("withFormat(%q, %q) = %q, want %q", tt.name, tt.format, got, tt.want)
			}
		})
	}
}

func TestUnmappedHeaders(t *testing.T) {
	got := unmappedHeaders([]string{"A", "B", "C"}, core.FieldMapping{core.FieldTotal: "B"})
	if strings.Join(got, ",") != "A,C" {
		t.Errorf("unmappedHeaders() = %v, want [A C]", got)
	}
}
