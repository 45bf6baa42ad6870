package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hallvard-mk/estimo/internal/estimate"
	"github.com/hallvard-mk/estimo/internal/tabular"
)

// handleStartImport accepts a tabular upload, parses it and registers an
// import job. The response carries the headers and the proposed column
// mapping so the client can adjust before validating.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	format := tabular.Format(r.FormValue("format"))
	if format == "" {
		format = tabular.FormatForFilename(header.Filename)
	}
	sheet := r.FormValue("sheet")

	info, err := s.service.StartJob(header.Filename, data, format, sheet)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

// validateRequest is the body of POST /api/import/{jobID}/validate.
// Mapping is optional; omitted it keeps the job's current mapping.
// RevisionID is optional; set, the response includes preview totals under
// that revision group's add-on configuration.
type validateRequest struct {
	Mapping    map[string]int `json:"mapping"`
	RevisionID *uuid.UUID     `json:"revisionId"`
}

// validateResponse pairs the validation result with optional preview totals.
type validateResponse struct {
	Result    *estimate.ValidationResult `json:"result"`
	Subtotals *estimate.Subtotals        `json:"subtotals,omitempty"`
	AddOns    *estimate.AddOnBreakdown   `json:"addOns,omitempty"`
}

func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUIDParam(w, r, "jobID")
	if !ok {
		return
	}

	var req validateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var mapping estimate.FieldMapping
	if req.Mapping != nil {
		mapping = make(estimate.FieldMapping, len(req.Mapping))
		for name, col := range req.Mapping {
			mapping[estimate.Field(name)] = col
		}
	}

	result, err := s.service.ValidateJob(jobID, mapping)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	resp := validateResponse{Result: result}
	if req.RevisionID != nil && !result.Blocked() {
		subs, addOns, err := s.service.PreviewTotalsForRevision(r.Context(), jobID, *req.RevisionID)
		if err != nil {
			s.respondError(w, r, err, statusForError(err))
			return
		}
		resp.Subtotals = subs
		resp.AddOns = addOns
	}

	writeJSON(w, http.StatusOK, resp)
}

// commitRequest is the body of POST /api/import/{jobID}/commit.
type commitRequest struct {
	RevisionID uuid.UUID `json:"revisionId"`
	ActorID    string    `json:"actorId"`
	Mode       string    `json:"mode"`
}

func (s *Server) handleCommitImport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUIDParam(w, r, "jobID")
	if !ok {
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RevisionID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "revisionId is required")
		return
	}

	mode := estimate.ApplyAtomic
	if req.Mode == string(estimate.ApplyLegacy) {
		mode = estimate.ApplyLegacy
	}

	report, err := s.service.CommitJob(r.Context(), jobID, req.RevisionID, req.ActorID, mode)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRevisionRecords(w http.ResponseWriter, r *http.Request) {
	revisionID, ok := parseUUIDParam(w, r, "revisionID")
	if !ok {
		return
	}

	records, err := s.service.RevisionRecords(r.Context(), revisionID)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleRevisionTotals(w http.ResponseWriter, r *http.Request) {
	revisionID, ok := parseUUIDParam(w, r, "revisionID")
	if !ok {
		return
	}

	subs, addOns, err := s.service.RevisionTotals(r.Context(), revisionID)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subtotals": subs,
		"addOns":    addOns,
	})
}

// handleAuditLog returns recent audit entries for one revision group.
// Query parameters: group (required), limit (optional, default 100).
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	groupStr := r.URL.Query().Get("group")
	if groupStr == "" {
		writeError(w, http.StatusBadRequest, "group query parameter is required")
		return
	}
	groupID, err := uuid.Parse(groupStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group ID")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	entries, err := s.service.AuditLog(r.Context(), groupID, limit)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// parseUUIDParam parses a chi URL parameter as a UUID, writing a 400 on
// failure.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
