package rest

import (
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, status, resp)
}

// HandleMetrics serves the counter map as JSON. The Prometheus exposition
// endpoint at /metrics serves the same counters for scrapers.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}
