package api

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 100
)

// StateHandler serves the read side of the engine.
type StateHandler struct {
	deps Dependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps Dependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// HandleState handles GET /api/state.
func (h *StateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, "api.state", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.State())
}

// HandleZones handles GET /api/zones.
func (h *StateHandler) HandleZones(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, "api.zones", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Zones())
}

// HandleClusters handles GET /api/clusters.
func (h *StateHandler) HandleClusters(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, "api.clusters", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Clusters())
}

// HandleAlerts handles GET /api/alerts?limit=N.
func (h *StateHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	const op = "api.alerts"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	limit := defaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		limit = min(n, maxAlertLimit)
	}
	writeJSON(w, http.StatusOK, h.deps.Alerts(limit))
}

// HandleNodes handles GET /api/nodes.
func (h *StateHandler) HandleNodes(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, "api.nodes", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Nodes(r.Context()))
}
