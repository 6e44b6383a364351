package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStepCommand(opts *options) *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Run exactly one step of a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.openEnv(cmd.Context(), false, 0)
			if err != nil {
				return err
			}
			defer e.Close()

			job, err := resumableJob(cmd.Context(), e, jobID)
			if err != nil {
				return err
			}
			return runSteps(cmd.Context(), opts, e, job, 1)
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job to step (default: the latest unfinished job)")
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	var (
		jobID string
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpointed jobs",
		Long: `Status lists the jobs in the checkpoint file, newest first, or shows one
job in detail with --job. --prune deletes finished jobs last updated
longer ago than the given duration.`,
		Example: `  payimport status
  payimport status --job 5f0c...
  payimport status --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			ckpt, err := opts.openCheckpoint(cfg)
			if err != nil {
				return err
			}
			defer ckpt.Close()
			now := time.Now()

			if prune > 0 {
				n, err := ckpt.Prune(ctx, now.Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(opts.out, "pruned %s finished jobs\n", formatCount(int(n)))
			}

			if jobID != "" {
				job, err := ckpt.GetJob(ctx, jobID)
				if err != nil {
					return err
				}
				printJob(opts.out, job, now)
				return nil
			}

			jobs, err := ckpt.ListJobs(ctx)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(opts.out, "no jobs")
				return nil
			}
			printJobs(opts.out, jobs, now)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete finished jobs older than this")
	return cmd
}
