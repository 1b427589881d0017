package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kerhoff/wishlister/internal/importer"
	"github.com/Kerhoff/wishlister/internal/service"
)

// multipartOverhead leaves room for the form boundaries around the file
const multipartOverhead = 64 << 10

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req service.ItemPatch
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.CreateItem(r.Context(), currentUser(r), chi.URLParam(r, "slug"), req)
	if err != nil {
		s.respondServiceError(w, r, err, "create item")
		return
	}
	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req service.ItemPatch
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.UpdateItem(r.Context(), currentUser(r), chi.URLParam(r, "slug"), chi.URLParam(r, "itemSlug"), req)
	if err != nil {
		s.respondServiceError(w, r, err, "update item")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	err := s.svc.DeleteItem(r.Context(), currentUser(r), chi.URLParam(r, "slug"), chi.URLParam(r, "itemSlug"))
	if err != nil {
		s.respondServiceError(w, r, err, "delete item")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Imports
// ---------------------------------------------------------------------------

type bulkRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	summary, err := s.svc.BulkImport(r.Context(), currentUser(r), chi.URLParam(r, "slug"), req.Text)
	if err != nil {
		s.respondServiceError(w, r, err, "import urls")
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

type uploadResponse struct {
	JobID   string           `json:"job_id"`
	Headers []string         `json:"headers"`
	Rows    int              `json:"rows"`
	Preview [][]string       `json:"preview"`
	Guess   importer.Mapping `json:"guess"`
}

const previewRows = 5

func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.svc.Importer.MaxBytes()+multipartOverhead)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondServiceError(w, r, service.ErrUploadTooLarge, "upload csv")
			return
		}
		s.respondError(w, http.StatusBadRequest, "a CSV file is required in the \"file\" field")
		return
	}
	defer file.Close()

	job, err := s.svc.UploadCSV(r.Context(), currentUser(r), chi.URLParam(r, "slug"), file)
	if err != nil {
		s.respondServiceError(w, r, err, "upload csv")
		return
	}

	sess := s.session(r)
	sess.Values[sessionJobKey] = job.ID
	if !s.saveSession(w, r, sess) {
		return
	}

	preview := job.Rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	s.respondJSON(w, http.StatusCreated, uploadResponse{
		JobID:   job.ID,
		Headers: job.Headers,
		Rows:    len(job.Rows),
		Preview: preview,
		Guess:   job.Guess,
	})
}

func (s *Server) handleMapCSV(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	sess := s.session(r)
	if stashed, _ := sess.Values[sessionJobKey].(string); stashed == "" || stashed != jobID {
		s.respondServiceError(w, r, service.ErrJobNotFound, "import csv")
		return
	}

	var m importer.Mapping
	if ok, msg := s.decodeJSON(r, &m); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	summary, err := s.svc.MapCSV(r.Context(), currentUser(r), chi.URLParam(r, "slug"), jobID, m)
	if err != nil && !errors.Is(err, service.ErrJobNotFound) {
		s.respondServiceError(w, r, err, "import csv")
		return
	}

	// the job is single use
	delete(sess.Values, sessionJobKey)
	if !s.saveSession(w, r, sess) {
		return
	}
	if err != nil {
		s.respondServiceError(w, r, err, "import csv")
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}
