package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

// Error kinds clients can branch on.
const (
	kindNotFound       = "not_found"
	kindMalformedInput = "malformed_input"
	kindInternal       = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the core error taxonomy to a status code and a stable
// machine-readable kind. Unclassified errors are store failures: logged in
// full, surfaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: kindNotFound})
	case errors.Is(err, core.ErrMalformedInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kindMalformedInput})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: kindInternal})
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Kind: kindMalformedInput})
}
