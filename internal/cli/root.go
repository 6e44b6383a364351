// Package cli implements the payimport command line tool. Jobs are
// checkpointed to a SQLite file after every step so an interrupted run can
// be resumed.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/payimport/internal/logging"
)

// options are the flags shared by all commands.
type options struct {
	statePath  string
	operatorID int64
	verbose    bool

	out    io.Writer
	errOut io.Writer
	lookup func(string) (string, bool)
}

// NewRootCommand builds the payimport command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{out: os.Stdout, errOut: os.Stderr, lookup: os.LookupEnv}

	root := &cobra.Command{
		Use:   "payimport",
		Short: "Import payments from CSV and XLSX exports",
		Long: `payimport imports payment rows from CSV or XLSX exports in fixed-size steps.

Progress is checkpointed after every step, so an interrupted run resumes
where it stopped with --job.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
			opts.errOut = cmd.ErrOrStderr()
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logging.SetupWriter(opts.errOut, level, "text")
		},
	}

	root.PersistentFlags().StringVar(&opts.statePath, "state", "", "checkpoint database (default IMPORT_CHECKPOINT_PATH)")
	root.PersistentFlags().Int64Var(&opts.operatorID, "operator", 1, "operator ID recorded on jobs and payments")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCommand(opts),
		newStepCommand(opts),
		newStatusCommand(opts),
		newAutoMapCommand(opts),
		newVersionCommand(version),
	)
	return root
}

// Execute runs the command tree with ctx and prints the error, if any.
func Execute(ctx context.Context, version string) error {
	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "payimport %s\n", version)
		},
	}
}
