package http

import (
	"net/http"

	apierrors "massupload/internal/errors"
)

// MetricsHandler serves the Prometheus exposition of the service metrics.
type MetricsHandler struct {
	exposition http.Handler
}

// NewMetricsHandler wraps the exporter handler. A nil handler means metrics
// are disabled and the endpoint answers 404.
func NewMetricsHandler(exposition http.Handler) *MetricsHandler {
	return &MetricsHandler{exposition: exposition}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exposition == nil {
		apierrors.WriteError(w, apierrors.New(http.StatusNotFound, "METRICS_DISABLED", "Metrics are disabled"))
		return
	}
	h.exposition.ServeHTTP(w, r)
}
