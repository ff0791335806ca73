package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	ready   func() bool
	metrics http.Handler
}

// NewHealthHandler creates a new health handler. ready may be nil.
func NewHealthHandler(ready func() bool) *HealthHandler {
	return &HealthHandler{
		ready:   ready,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// HandleHealth handles GET /healthz. Clients asking for JSON get the service
// status; everything else gets the Prometheus exposition, so a scraper can
// point at either path.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		h.metrics.ServeHTTP(w, r)
		return
	}
	ready := h.ready == nil || h.ready()
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Ready: true})
}

// Metrics returns the Prometheus handler on the service registry.
func (h *HealthHandler) Metrics() http.Handler { return h.metrics }
