package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var statusNicenames = map[string]string{
	StatusPending:   "Pending",
	StatusPublish:   "Completed",
	StatusComplete:  "Completed",
	StatusCompleted: "Completed",
	"refunded":      "Refunded",
	"failed":        "Failed",
	"abandoned":     "Abandoned",
	"revoked":       "Revoked",
	"processing":    "Processing",
	"cancelled":     "Cancelled",
}

// StatusNicename returns the display label for a payment status.
// Unknown statuses are title-cased with underscores and dashes as spaces.
func StatusNicename(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if name, ok := statusNicenames[status]; ok {
		return name
	}
	status = strings.NewReplacer("_", " ", "-", " ").Replace(status)
	return cases.Title(language.English).String(status)
}
