package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics содержит метрики HTTP-слоя.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics регистрирует метрики HTTP в переданном registerer (nil — DefaultRegisterer).
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderapi_http_requests_total",
			Help: "Total number of HTTP requests grouped by method, route and status.",
		}, []string{"method", "route", "status"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderapi_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderapi_http_requests_in_flight",
			Help: "Number of HTTP requests being served.",
		})),
	}
}

// RequestStarted увеличивает счётчик активных запросов.
func (m *HTTPMetrics) RequestStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// ObserveRequest учитывает завершённый запрос. route — шаблон маршрута, а не сырой путь.
func (m *HTTPMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}
