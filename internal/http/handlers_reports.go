package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"budgetplaner/internal/backup"
	"budgetplaner/internal/core"
	applog "budgetplaner/internal/log"
)

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Reports.Statistics(r.Context(), owner(r), sanitizeInput(r.URL.Query().Get("month")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleBudgetStatus defaults to the current month. Without a category the
// overall monthly limit applies.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month := sanitizeInput(q.Get("month"))
	if month == "" {
		month = core.MonthLabel(s.now())
	}
	status, err := s.deps.Reports.BudgetStatus(r.Context(), owner(r), sanitizeInput(q.Get("category")), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	txs, err := s.deps.Reports.Search(r.Context(), owner(r), ParseTransactionFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// handleExport buffers the document so that a failure can still be
// reported as JSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := backup.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Data.Export(r.Context(), owner(r), format, &buf); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport reads the raw document from the body. The format comes from
// the query, or from the Content-Type when the query has none.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = formatFromContentType(r.Header.Get("Content-Type"))
	}
	format, err := backup.ParseFormat(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	res, err := s.deps.Data.Import(r.Context(), owner(r), format, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Import finished",
		applog.FieldOperation, applog.OpImport,
		applog.FieldOwnerID, owner(r),
		"imported", res.Imported,
		"errors", len(res.Errors))
	writeJSON(w, http.StatusOK, res)
}

func formatFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "csv"):
		return string(backup.CSV)
	case strings.Contains(ct, "spreadsheetml"):
		return string(backup.XLSX)
	default:
		return ""
	}
}
