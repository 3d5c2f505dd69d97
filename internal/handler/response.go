package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//	writeJSON(w, logger, http.StatusOK, data)
//	writeError(w, logger, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//
//	{"error": "not_found", "message": "github user not found with id ghost"}
//
// The CLI (and any other client) can rely on those two fields regardless of
// the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/github-scraper/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// errorMapping is one row of the domain-error → HTTP table.
type errorMapping struct {
	kind   error
	status int
	code   string
	// expose decides whether the AppError message reaches the client.
	// Storage messages can carry SQL or file paths, so they stay in the logs.
	expose bool
}

// ERROR MAPPING:
// Checked top to bottom with errors.Is. Anything that matches no row is a
// bug somewhere below us and becomes an opaque 500.
//
// WHY 422 FOR VALIDATION?
// The request is well-formed HTTP; it is the username or n inside it that is
// unacceptable. That is 422 Unprocessable Entity, the status our clients
// already expect.
//
// WHY 503 FOR GITHUB FAILURES?
// From the client's point of view our dependency is unavailable and the same
// request may well succeed later. 503 says exactly that; a 404 or an empty
// 200 would be a lie.
var errorMappings = []errorMapping{
	{apperror.ErrValidation, http.StatusUnprocessableEntity, "validation_error", true},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found", true},
	{apperror.ErrRemoteService, http.StatusServiceUnavailable, "remote_service_unavailable", true},
	{apperror.ErrStorage, http.StatusInternalServerError, "storage_error", false},
}

const internalErrorMessage = "An internal error occurred"

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
//  1. w.Header().Set(...)     ← set headers
//  2. w.WriteHeader(status)   ← send status + headers
//  3. json.Encode(data)       ← send body
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already on the wire; all we can do is log.
			logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer should not know about HTTP status codes. The CLI maps the
// same errors to terminal messages; only this file knows about 404 and 503.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, logger, status, body)
}

func classify(err error) (int, ErrorResponse) {
	var appErr *apperror.AppError
	hasAppErr := errors.As(err, &appErr)

	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		msg := internalErrorMessage
		if m.expose && hasAppErr {
			msg = appErr.Message
		}
		return m.status, ErrorResponse{Error: m.code, Message: msg}
	}

	// NEVER expose unknown error details to the client.
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: internalErrorMessage,
	}
}

// RouteNotFound answers requests that match no route with the standard
// error body instead of chi's plain-text 404.
func RouteNotFound(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "no route for " + r.Method + " " + r.URL.Path,
		})
	}
}

// MethodNotAllowed is RouteNotFound's counterpart for known paths.
func MethodNotAllowed(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusMethodNotAllowed, ErrorResponse{
			Error:   "method_not_allowed",
			Message: r.Method + " is not supported on " + r.URL.Path,
		})
	}
}
