package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики REST API.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewHTTPMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of REST API requests",
		}, []string{"method", "route", "code"}),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "Duration of REST API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}), "pos_http_request_duration_seconds"),
	}
}

// Observe учитывает один обработанный запрос. route задаётся шаблоном маршрута, а не сырым путём.
func (m *HTTPMetrics) Observe(method, route string, code int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}
