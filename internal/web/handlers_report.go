package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/JonMunkholm/salesreport/internal/web/templates"
)

// reportFileName is the attachment name of the CSV report.
const reportFileName = "summary_report.csv"

// handleSummaryReport returns the per-category summary of all stored
// products as a CSV attachment, or as an HTML table with ?format=html.
func (s *Server) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Report(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	switch r.URL.Query().Get("format") {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.SummaryPage(summary).Render(r.Context(), w); err != nil {
			logRenderError(r, err)
		}
	case "json":
		writeJSON(w, http.StatusOK, summary)
	default:
		// Buffer so a write failure can still become an error response.
		var buf bytes.Buffer
		if err := core.WriteSummaryCSV(&buf, summary); err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+reportFileName+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			logRenderError(r, err)
		}
	}
}

// handleUploads returns the upload history, newest first. ?limit caps the count.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, r, fmt.Errorf("invalid query parameter limit=%q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	uploads, err := s.service.Uploads(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if uploads == nil {
		uploads = []core.Upload{}
	}
	writeJSON(w, http.StatusOK, uploads)
}
