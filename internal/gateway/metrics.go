package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_in_flight_requests",
		Help: "In-flight requests at the gateway.",
	})

	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests handled by the gateway.",
		},
		[]string{"method", "route", "status"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Gateway request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	gatewayRateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"class"},
	)
)

// RegisterMetrics registers the gateway collectors with the default
// registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(gatewayInFlight, gatewayRequestsTotal, gatewayRequestDuration, gatewayRateLimitedTotal)
}

// Instrument measures RPS, latency and in-flight count per routed prefix.
func Instrument(routes *RouteTable) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routes.Label(r.URL.Path)
			method := r.Method

			gatewayInFlight.Inc()
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(sw.code)

			gatewayRequestDuration.WithLabelValues(method, route, status).Observe(duration)
			gatewayRequestsTotal.WithLabelValues(method, route, status).Inc()
			gatewayInFlight.Dec()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
