package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/csvio"
)

// handleImportCSV runs the batch pipeline: parse and stage every row, then
// apply them as one atomic unit. Any failure leaves the store untouched.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.ImportMaxBytes)
	if err := r.ParseMultipartForm(s.ImportMaxBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: multipart body: %v", core.ErrMalformedInput, err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: no file provided", core.ErrMalformedInput))
		return
	}
	defer file.Close()

	rows, err := csvio.Parse(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.batch.ImportTransactions(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"imported": n,
		"message":  fmt.Sprintf("Successfully imported %d transactions", n),
	})
}

// handleExportCSV streams the full store as an attachment.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	rows, err := s.batch.ExportRows(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := csvio.Write(w, rows); err != nil && s.logger != nil {
		// Headers are already out; log and drop the connection.
		s.logger.ErrorContext(r.Context(), "CSV export failed mid-stream", "error", err)
	}
}
