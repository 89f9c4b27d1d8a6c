package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the board
// engine and the HTTP surface.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	layoutDuration   prometheus.Histogram
	lanesPerResource prometheus.Histogram
	dragSessions     *prometheus.CounterVec
	mutations        *prometheus.CounterVec
	rollbacks        prometheus.Counter
	bufferExtensions *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// NewMetricsService registers the board collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	layoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "board_layout_recompute_seconds",
		Help:    "Time spent recomputing the positioned board view",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	lanesPerResource := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "board_lanes_per_resource",
		Help:    "Lane count distribution across resources per recompute",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 12},
	})

	dragSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_drag_sessions_total",
		Help: "Drag sessions by terminal outcome",
	}, []string{"outcome"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_mutations_total",
		Help: "Optimistic mutations by command and result",
	}, []string{"command", "result"})

	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "board_rollbacks_total",
		Help: "Optimistic applies reverted after a remote failure",
	})

	bufferExtensions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_buffer_extensions_total",
		Help: "Buffer window extensions by side",
	}, []string{"side"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "board_cache_hits_total",
		Help: "Board snapshot cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "board_cache_misses_total",
		Help: "Board snapshot cache misses",
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		layoutDuration, lanesPerResource,
		dragSessions, mutations, rollbacks,
		bufferExtensions, cacheHits, cacheMisses,
	)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		layoutDuration:   layoutDuration,
		lanesPerResource: lanesPerResource,
		dragSessions:     dragSessions,
		mutations:        mutations,
		rollbacks:        rollbacks,
		bufferExtensions: bufferExtensions,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
	}
}

// Handler exposes the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": httpStatusLabel(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// ObserveLayout records one board recompute.
func (m *MetricsService) ObserveLayout(duration time.Duration, laneCounts []int) {
	m.layoutDuration.Observe(duration.Seconds())
	for _, c := range laneCounts {
		m.lanesPerResource.Observe(float64(c))
	}
}

// CountDragSession records a terminal drag outcome (committed, cancelled).
func (m *MetricsService) CountDragSession(outcome string) {
	m.dragSessions.WithLabelValues(outcome).Inc()
}

// CountMutation records a gateway command result.
func (m *MetricsService) CountMutation(command, result string) {
	m.mutations.WithLabelValues(command, result).Inc()
}

// CountRollback records one optimistic revert.
func (m *MetricsService) CountRollback() {
	m.rollbacks.Inc()
}

// CountBufferExtension records one window extension.
func (m *MetricsService) CountBufferExtension(side string) {
	m.bufferExtensions.WithLabelValues(side).Inc()
}

// CountCache records a snapshot cache lookup.
func (m *MetricsService) CountCache(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
