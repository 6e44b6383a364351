package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/payimport/internal/config"
	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/tabular"
)

type runOptions struct {
	file        string
	mappingPath string
	perStep     int
	dryRun      bool
	jobID       string
	steps       int
}

func newRunCommand(opts *options) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import a file, or resume an interrupted import",
		Long: `Run imports --file step by step until it is done.

Without --file the job given by --job is resumed, or the most recent
unfinished job in the checkpoint file when --job is not set either.
Without --mapping the columns are mapped from the header row.`,
		Example: `  payimport run --file orders.csv --mapping shop.yaml
  payimport run --job 5f0c...   # resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, ro)
		},
	}
	cmd.Flags().StringVarP(&ro.file, "file", "f", "", "CSV or XLSX file to import")
	cmd.Flags().StringVarP(&ro.mappingPath, "mapping", "m", "", "YAML mapping file")
	cmd.Flags().IntVar(&ro.perStep, "per-step", 0, "rows a step is sized for (default IMPORT_PER_STEP)")
	cmd.Flags().BoolVar(&ro.dryRun, "dry-run", false, "import into memory only")
	cmd.Flags().StringVar(&ro.jobID, "job", "", "job to resume")
	cmd.Flags().IntVar(&ro.steps, "steps", 0, "stop after this many steps (default: run to completion)")
	cmd.MarkFlagsMutuallyExclusive("file", "job")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "job")
	return cmd
}

func runImport(ctx context.Context, opts *options, ro *runOptions) error {
	if ro.dryRun && ro.file == "" {
		return errors.New("--dry-run needs --file")
	}

	var mf *config.MappingFile
	if ro.mappingPath != "" {
		var err error
		if mf, err = config.LoadMappingFile(ro.mappingPath); err != nil {
			return err
		}
	}
	perStep := ro.perStep
	if perStep <= 0 && mf != nil {
		perStep = mf.PerStep
	}

	e, err := opts.openEnv(ctx, ro.dryRun, perStep)
	if err != nil {
		return err
	}
	defer e.Close()

	var job *core.Job
	if ro.file != "" {
		job, err = createJob(ctx, opts, e, ro.file, mf)
	} else {
		job, err = resumableJob(ctx, e, ro.jobID)
	}
	if err != nil {
		return err
	}
	if ro.dryRun {
		fmt.Fprintln(opts.out, "dry run: nothing is written")
	}
	return runSteps(ctx, opts, e, job, ro.steps)
}

// createJob reads a data file and creates its job. mf may be nil.
func createJob(ctx context.Context, opts *options, e *env, path string, mf *config.MappingFile) (*core.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no file provided: %w", err)
	}
	name := filepath.Base(path)

	var mapping core.FieldMapping
	if mf != nil {
		if name, err = withFormat(name, mf.Format); err != nil {
			return nil, err
		}
		if mapping, err = mf.FieldMapping(); err != nil {
			return nil, err
		}
	} else {
		format, err := tabular.DetectFormat(name)
		if err != nil {
			return nil, err
		}
		table, err := tabular.ReadBytes(data, format)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		mapping = core.AutoMap(table.Headers)
		fmt.Fprintf(opts.out, "auto-mapped %d of %d columns\n", len(mapping.Mapped()), len(table.Headers))
	}

	job, err := e.service.CreateJob(ctx, opts.operator(), name, data, mapping)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(opts.out, "created job %s (%s rows)\n", job.ID, formatCount(job.State.TotalRows))
	return job, nil
}

// withFormat gives name the extension of a forced format.
func withFormat(name, format string) (string, error) {
	if format == "" {
		return name, nil
	}
	f, err := tabular.ParseFormat(format)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, "."+string(f)) {
		return name, nil
	}
	return strings.TrimSuffix(name, ext) + "." + string(f), nil
}

// resumableJob returns the job to resume: id, or the latest unfinished job.
func resumableJob(ctx context.Context, e *env, id string) (*core.Job, error) {
	if id != "" {
		job, err := e.service.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Finished() {
			return nil, fmt.Errorf("%w: %s", core.ErrJobFinished, job.Status)
		}
		return job, nil
	}

	job, ok, err := e.ckpt.LatestJob(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("nothing to resume: pass --file or --job")
	}
	return job, nil
}

// runSteps runs steps of job until it is done, ctx is cancelled, or limit
// steps have run when limit is positive.
func runSteps(ctx context.Context, opts *options, e *env, job *core.Job, limit int) error {
	op := opts.operator()
	start := time.Now()
	imported, issues := 0, 0

	for n := 0; limit <= 0 || n < limit; n++ {
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(opts.out, "interrupted; resume with: payimport run --job %s\n", job.ID)
			return err
		}

		report, err := e.service.RunStep(ctx, op, job.ID)
		if err != nil {
			return fmt.Errorf("step %d: %w", report.Step, err)
		}
		imported += report.Imported
		issues += len(report.Issues)
		printStep(opts.out, report)
		for _, is := range report.Issues {
			printIssue(opts.errOut, is)
		}
		if !report.More {
			break
		}
	}

	done, err := e.service.Job(ctx, job.ID)
	if err != nil {
		return err
	}
	printSummary(opts.out, done, imported, issues, time.Since(start))
	if !done.Finished() {
		fmt.Fprintf(opts.out, "resume with: payimport run --job %s\n", done.ID)
	}
	return nil
}
