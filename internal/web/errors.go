package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error flows through respondError:
//  1. The error is mapped via estimate.MapError to a user-facing message
//     with a stable support code.
//  2. The technical error and request context are logged with the request
//     ID for correlation.
//  3. The user message is returned as JSON; technical details never reach
//     the client.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hallvard-mk/estimo/internal/estimate"
	"github.com/hallvard-mk/estimo/internal/tabular"
)

// ErrorResponse is the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes the mapped
// user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := estimate.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForError picks the HTTP status for a domain error.
func statusForError(err error) int {
	var parseErr *tabular.ParseError
	switch {
	case errors.Is(err, estimate.ErrJobNotFound),
		errors.Is(err, estimate.ErrRevisionNotFound):
		return http.StatusNotFound
	case errors.Is(err, estimate.ErrNotValidated),
		errors.Is(err, estimate.ErrBlockingIssues),
		errors.Is(err, estimate.ErrDescriptionUnmapped),
		errors.Is(err, estimate.ErrRevisionFrozen):
		return http.StatusConflict
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
