package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/JonMunkholm/salesreport/internal/logging"
)

type healthResponse struct {
	Status  string                   `json:"status"`
	Uploads core.UploadLimiterStatus `json:"uploads"`
}

// handleHealth pings the store and reports upload slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Uploads: s.service.UploadLimiterStatus()}
	status := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func logRenderError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("response write failed", "path", r.URL.Path, "error", err)
}
