// Package server exposes the calculations over a small JSON HTTP API.
package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks server-level request metrics. Calculation metrics are
// recorded by the fibonacci package and served from the same registry.
type Metrics struct {
	handler http.Handler
}

var (
	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fibsquares_http_active_requests",
		Help: "Current number of active requests",
	})
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fibsquares_http_requests_total",
		Help: "Total number of requests by path and status code",
	}, []string{"path", "code"})
)

// NewMetrics creates a Metrics instance backed by the default registry.
func NewMetrics() *Metrics {
	return &Metrics{handler: promhttp.Handler()}
}

// handleMetrics is the HTTP handler for the /metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.metrics.handler.ServeHTTP(w, r)
}

// metricsMiddleware tracks active requests and counts responses. The path
// label comes from the registered route, not the raw URL.
func (s *Server) metricsMiddleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeRequests.Inc()
		defer activeRequests.Dec()

		rec, ok := w.(*statusRecorder)
		if !ok {
			rec = &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		}
		next(rec, r)
		requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}
