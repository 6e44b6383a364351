package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/payimport/internal/core"
)

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func printStep(w io.Writer, r core.StepReport) {
	if r.Processed == 0 && !r.More {
		return
	}
	fmt.Fprintf(w, "step %d: %s rows, %s imported, %s issues (%.0f%%)\n",
		r.Step, formatCount(r.Processed), formatCount(r.Imported), formatCount(len(r.Issues)), r.Percentage)
}

// printIssue writes a row issue with the 1-based line number of the file,
// counting the header row.
func printIssue(w io.Writer, is core.RowIssue) {
	fmt.Fprintf(w, "  line %d: %s\n", is.Row+2, is)
}

func printSummary(w io.Writer, job *core.Job, imported, issues int, elapsed time.Duration) {
	fmt.Fprintf(w, "%s: imported %s payments with %s issues in %s (job %s, %s total)\n",
		job.Status, formatCount(imported), formatCount(issues), elapsed.Round(time.Millisecond), job.ID, formatCount(job.Imported))
}

// printJob writes the details of one job.
func printJob(w io.Writer, job *core.Job, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Job:\t%s\n", job.ID)
	fmt.Fprintf(tw, "File:\t%s (%s)\n", job.FileName, job.Format)
	fmt.Fprintf(tw, "Status:\t%s\n", job.Status)
	fmt.Fprintf(tw, "Progress:\tstep %d, %s of %s rows imported (%.0f%%)\n",
		job.State.CurrentStep, formatCount(job.Imported), formatCount(job.State.TotalRows), jobPercentage(job))
	fmt.Fprintf(tw, "Issues:\t%s\n", formatCount(job.IssueCount))
	fmt.Fprintf(tw, "Created:\t%s\n", humanize.RelTime(job.CreatedAt, now, "ago", "from now"))
	fmt.Fprintf(tw, "Updated:\t%s\n", humanize.RelTime(job.UpdatedAt, now, "ago", "from now"))
	if job.LastError != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", job.LastError)
	}
	tw.Flush()
}

// printJobs writes one line per job.
func printJobs(w io.Writer, jobs []*core.Job, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tPROGRESS\tIMPORTED\tUPDATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			j.ID, j.FileName, j.Status, jobPercentage(j), formatCount(j.Imported),
			humanize.RelTime(j.UpdatedAt, now, "ago", "from now"))
	}
	tw.Flush()
}

// jobPercentage is the scheduler percentage, or 100 once a job is complete.
func jobPercentage(job *core.Job) float64 {
	if job.Status == core.JobComplete {
		return 100
	}
	return job.Percentage()
}
