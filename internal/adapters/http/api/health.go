package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/pitwall/pkg/metrics"
)

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleMetrics handles GET /healthz by serving the Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// HandleHealth handles GET /health. Degraded mode answers 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.deps.Health(r.Context())
	code := http.StatusOK
	if !status.ModelsLoaded {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
