package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/payimport/internal/web/templates"
)

// handleStep runs one step of an import and returns the step report.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.service.RunStep(r.Context(), operator(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isHTMX(r) {
		job, err := s.service.Job(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.JobProgress(job).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleStart hands an import to the background runner.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Start(r.Context(), operator(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJob(w, r, http.StatusAccepted, job)
}

// handleCancel stops an import at the next step boundary.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Cancel(r.Context(), operator(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJob(w, r, http.StatusOK, job)
}
