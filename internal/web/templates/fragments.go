// Package templates holds the HTML fragments returned to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/payimport/internal/core"
)

// ErrorAlert renders a dismissible error alert with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><p class="alert-message">%s</p>`,
			templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// JobProgress renders the progress bar of an import job. Running jobs poll
// for updates every two seconds.
func JobProgress(job *core.Job) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pct := core.NewScheduler(job.State, nil).PercentageComplete()
		if job.Status == core.JobComplete {
			pct = 100
		}
		poll := ""
		if job.Status == core.JobRunning {
			poll = fmt.Sprintf(` hx-get="/api/imports/%s" hx-trigger="every 2s" hx-swap="outerHTML"`,
				templ.EscapeString(job.ID))
		}
		_, err := fmt.Fprintf(w,
			`<div class="job-progress" id="job-%s" data-status="%s"%s>`+
				`<progress max="100" value="%.0f"></progress>`+
				`<span class="job-summary">%s: %s of %s rows imported, %s issues</span></div>`,
			templ.EscapeString(job.ID), templ.EscapeString(string(job.Status)), poll, pct,
			templ.EscapeString(job.FileName),
			humanize.Comma(int64(job.Imported)),
			humanize.Comma(int64(job.State.TotalRows)),
			humanize.Comma(int64(job.IssueCount)),
		)
		return err
	})
}
