// Package httputil centralizes JSON encoding and domain-error translation
// for HTTP handlers. Handlers never pick status codes themselves.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "workpermit/pkg/domain-errors"
)

// errorResponse is the JSON error envelope. Details carries the concrete
// numbers of quota and business-rule failures so the operator can see why.
type errorResponse struct {
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError translates a domain error into the HTTP error envelope.
// Internal errors omit the description so infrastructure detail never leaks
// to clients; everything else surfaces message and details verbatim.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodePrecondition {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
			resp.Details = de.Details
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// Decode decodes a JSON request body, logging and writing a bad_request
// response on failure. Returns false if the request was already answered.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "invalid request body", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		var zero T
		return zero, false
	}
	return req, true
}
