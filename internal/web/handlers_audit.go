package web

import (
	"net/http"

	"github.com/JonMunkholm/payimport/internal/core"
)

// auditPageSize is the default number of entries per audit page.
const auditPageSize = 50

// handleAuditLog returns audit entries newest first. Filters: job_id,
// action; paging: limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditFilter{
		JobID:  q.Get("job_id"),
		Action: core.AuditAction(q.Get("action")),
		Limit:  intParam(r, "limit", auditPageSize),
		Offset: intParam(r, "offset", 0),
	}
	if filter.Limit > core.DefaultAuditLimit {
		filter.Limit = core.DefaultAuditLimit
	}

	entries, err := s.service.AuditLog(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
