package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/tabular"
	"github.com/JonMunkholm/payimport/internal/web/templates"
)

// multipartOverhead is the allowance for form fields next to the file.
const multipartOverhead = 1 << 20

// upload is a parsed import form.
type upload struct {
	fileName string
	data     []byte
	mapping  core.FieldMapping
}

// readUpload reads the multipart "file" field and the optional "mapping"
// (JSON object of field to column) or "template_id" fields.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file too large: request exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("no file provided: invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("no file provided: %w", err)
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds limit of %d", header.Size, maxSize)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	u := &upload{fileName: header.Filename, data: data}
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &u.mapping); err != nil {
			return nil, fmt.Errorf("invalid enum: mapping is not a JSON object of field to column: %w", err)
		}
	} else if id := r.FormValue("template_id"); id != "" {
		t, err := s.service.Template(r.Context(), id)
		if err != nil {
			return nil, err
		}
		u.mapping = t.Mapping
	}
	return u, nil
}

// handleCreateImport stores an upload as a new import job. Without a
// mapping or template the columns are auto-mapped from the header row.
// start=true hands the job to the background runner right away.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if len(u.mapping) == 0 {
		if u.mapping, err = autoMapFile(u.fileName, u.data); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	op := operator(r)
	job, err := s.service.CreateJob(r.Context(), op, u.fileName, u.data, u.mapping)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if r.FormValue("start") == "true" {
		if job, err = s.service.Start(r.Context(), op, job.ID); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		templates.JobProgress(job).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// handlePreview analyses an upload without importing it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	preview, err := s.service.Preview(r.Context(), operator(r), u.fileName, u.data, u.mapping)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// autoMapFile suggests a mapping from the header row of a file.
func autoMapFile(fileName string, data []byte) (core.FieldMapping, error) {
	format, err := tabular.DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	table, err := tabular.ReadBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	return core.AutoMap(table.Headers), nil
}
