// Package metrics holds the Prometheus collectors for the map engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/dpup/prefab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Camera metrics
	CameraTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "camera",
		Name:      "ticks_total",
		Help:      "Navigation camera ticks by outcome",
	}, []string{"outcome"})

	CameraErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "camera",
		Name:      "set_camera_errors_total",
		Help:      "Camera poses the host refused to apply",
	})

	// Marker metrics
	MarkerReconciles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "markers",
		Name:      "layer_reconciles_total",
		Help:      "Marker layers cleared and recreated",
	}, []string{"layer"})

	MarkerHostErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "markers",
		Name:      "host_errors_total",
		Help:      "Marker layers whose clear or recreate reported a host error",
	}, []string{"layer"})

	MarkersRendered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ridemap",
		Subsystem: "markers",
		Name:      "rendered",
		Help:      "Markers currently rendered per layer",
	}, []string{"layer"})

	// Layer monitor metrics
	LayerReadds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "monitor",
		Name:      "layer_readds_total",
		Help:      "Boundary layers re-added after eviction",
	}, []string{"layer"})

	MonitorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "monitor",
		Name:      "errors_total",
		Help:      "Monitor iterations that failed",
	}, []string{"layer"})

	// Draft metrics
	DraftClicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "draft",
		Name:      "clicks_total",
		Help:      "Boundary draft clicks by outcome",
	}, []string{"outcome"})

	// Cache metrics
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total draft store hits",
	}, []string{"store"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total draft store misses",
	}, []string{"store"})

	// HTTP metrics for the preview server
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ridemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "path"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count and latency for fn under path
func Instrument(path string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fn(w, r)
		httpRequestsTotal.WithLabelValues(r.Method, path).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	}
}

// InstrumentJSON records request count and latency for a prefab JSON handler
func InstrumentJSON(path string, fn prefab.JSONHandler) prefab.JSONHandler {
	return func(r *http.Request) (any, error) {
		start := time.Now()
		resp, err := fn(r)
		httpRequestsTotal.WithLabelValues(r.Method, path).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
