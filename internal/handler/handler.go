// Package handler provides the HTTP handlers of the listing dashboard.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// ReadinessChecker reports whether the listing collection has been fetched.
type ReadinessChecker interface {
	Loaded() bool
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	ready  ReadinessChecker
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(ready ReadinessChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		ready:  ready,
		logger: logger,
	}
}

// RegisterRoutes registers the probe routes with the router.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// Ready handles GET /ready requests. The dashboard is ready once the listing
// collection has been fetched at least once.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Loaded() {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReadyResponse{Status: "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	writeJSON(w, logger, status, model.ErrorResponse{
		Code:    status,
		Message: message,
	})
}
