package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/web/templates"
)

// handleHealth reports liveness and, when configured, dependency health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the step limiter snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleFields lists the canonical fields a mapping may use.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Fields())
}

// handleGateways lists the registered payment gateways.
func (s *Server) handleGateways(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Gateways())
}

// handleAutoMap suggests a mapping and matching templates for headers.
func (s *Server) handleAutoMap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Headers []string `json:"headers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("required field: request body must be JSON with headers: %w", err), http.StatusBadRequest)
		return
	}
	if len(req.Headers) == 0 {
		s.respondError(w, r, fmt.Errorf("required field: headers"), http.StatusBadRequest)
		return
	}

	matches, err := s.service.MatchTemplates(r.Context(), req.Headers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mapping":   core.AutoMap(req.Headers),
		"templates": matches,
	})
}

// handleListImports lists import jobs, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.service.Jobs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// handleGetImport returns one import job.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJob(w, r, http.StatusOK, job)
}

// handleGetPayment returns one imported payment.
func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := int64URLParam(r, "id")
	if !ok {
		s.respondError(w, r, fmt.Errorf("invalid payment id %q: %w", chi.URLParam(r, "id"), core.ErrPaymentNotFound), http.StatusNotFound)
		return
	}
	p, err := s.service.Payment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// respondJob writes a job as JSON, or as a progress fragment for HTMX.
func (s *Server) respondJob(w http.ResponseWriter, r *http.Request, status int, job *core.Job) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.JobProgress(job).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, job)
}
