package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/YashwanthDevelops/StampadeShield/internal/app"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/udp"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

const maxReadingBytes = 16 << 10

// ReadingsHandler accepts node readings over HTTP for nodes that cannot
// reach the UDP port.
type ReadingsHandler struct {
	deps Dependencies
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(deps Dependencies) *ReadingsHandler {
	return &ReadingsHandler{deps: deps}
}

// HandlePostReading handles POST /api/readings. The body is the same JSON a
// node sends over UDP.
func (h *ReadingsHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reading"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadingBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Ingest(r.Context(), body, service.TransportHTTP, nil)
	switch {
	case err == nil && res.Duplicate:
		writeJSON(w, http.StatusOK, res)
	case err == nil:
		writeJSON(w, http.StatusAccepted, res)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, WrapKind(op, ErrBackpressure, err))
	case isClientError(err):
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusServiceUnavailable, WrapKind(op, ErrUnavailable, fmt.Errorf("ingest: %w", err)))
	}
}

func isClientError(err error) bool {
	return errors.Is(err, udp.ErrMalformed) ||
		errors.Is(err, udp.ErrMissingNode) ||
		errors.Is(err, udp.ErrMissingDistance) ||
		errors.Is(err, model.ErrUnknownNode)
}
