// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service.
type Dependencies interface {
	// Ingest accepts one node message in the datagram format.
	Ingest(ctx context.Context, data []byte, transport string, from *net.UDPAddr) (types.Ingested, error)

	State() types.State
	Zones() []types.Zone
	Clusters() types.Clusters
	Alerts(limit int) types.Alerts
	Nodes(ctx context.Context) types.Nodes
}

// Server wires HTTP routes for the monitoring API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	readingsHandler *ReadingsHandler
	stateHandler    *StateHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsProvider, ready func() bool) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(ready),
		statsHandler:    NewStatsHandler(stats),
		readingsHandler: NewReadingsHandler(deps),
		stateHandler:    NewStateHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.Metrics())
	mux.HandleFunc("/api/state", MetricsMiddleware(s.stateHandler.HandleState, "state"))
	mux.HandleFunc("/api/zones", MetricsMiddleware(s.stateHandler.HandleZones, "zones"))
	mux.HandleFunc("/api/clusters", MetricsMiddleware(s.stateHandler.HandleClusters, "clusters"))
	mux.HandleFunc("/api/alerts", MetricsMiddleware(s.stateHandler.HandleAlerts, "alerts"))
	mux.HandleFunc("/api/nodes", MetricsMiddleware(s.stateHandler.HandleNodes, "nodes"))
	mux.HandleFunc("/api/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/readings", MetricsMiddleware(s.readingsHandler.HandlePostReading, "readings"))
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Kind: kindName(err), Message: http.StatusText(status)}
	if err != nil {
		body.Message = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func kindName(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrBackpressure):
		return "backpressure"
	case errors.Is(err, ErrMethodNotAllowed):
		return "method_not_allowed"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}

// allow rejects any method but m with 405.
func allow(w http.ResponseWriter, r *http.Request, op, m string) bool {
	if r.Method == m {
		return true
	}
	w.Header().Set("Allow", m)
	writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
	return false
}
