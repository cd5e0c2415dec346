// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus. Each
// collector owns its registry.
type Collector struct {
	registry *prometheus.Registry

	indexBuilds         *prometheus.CounterVec
	indexBuildDuration  prometheus.Histogram
	indexedPoints       prometheus.Gauge
	clusterQueries      prometheus.Counter
	queryDuration       prometheus.Histogram
	renderPasses        prometheus.Counter
	renderedItems       prometheus.Histogram
	datasetsLoaded      prometheus.Gauge
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "clustermap"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		indexBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_builds_total",
				Help:      "Total number of cluster index builds",
			},
			[]string{"status"},
		),

		indexBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_duration_seconds",
				Help:      "Cluster index build duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),

		indexedPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "indexed_points",
				Help:      "Number of points in the current cluster index",
			},
		),

		clusterQueries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cluster_queries_total",
				Help:      "Total number of viewport cluster queries",
			},
		),

		queryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Viewport query duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),

		renderPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_passes_total",
				Help:      "Total number of render passes",
			},
		),

		renderedItems: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_items",
				Help:      "Number of items per render pass",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		datasetsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "datasets_loaded",
				Help:      "Number of loaded point datasets",
			},
		),

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// IncIndexBuilds increments the index build counter.
func (c *Collector) IncIndexBuilds(success bool) {
	c.indexBuilds.WithLabelValues(status(success)).Inc()
}

// ObserveIndexBuildDuration records index build duration.
func (c *Collector) ObserveIndexBuildDuration(duration time.Duration) {
	c.indexBuildDuration.Observe(duration.Seconds())
}

// SetIndexedPoints sets the number of indexed points.
func (c *Collector) SetIndexedPoints(count int) {
	c.indexedPoints.Set(float64(count))
}

// IncClusterQueries increments the query counter.
func (c *Collector) IncClusterQueries() {
	c.clusterQueries.Inc()
}

// ObserveQueryDuration records query duration.
func (c *Collector) ObserveQueryDuration(duration time.Duration) {
	c.queryDuration.Observe(duration.Seconds())
}

// ObserveRenderPass records a render pass.
func (c *Collector) ObserveRenderPass(items int) {
	c.renderPasses.Inc()
	c.renderedItems.Observe(float64(items))
}

// SetDatasetsLoaded sets the number of loaded datasets.
func (c *Collector) SetDatasetsLoaded(count int) {
	c.datasetsLoaded.Set(float64(count))
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, status(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns the HTTP handler exposing this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Middleware records request count and duration per route template.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := routeTemplate(r)
		c.httpRequestsTotal.WithLabelValues(r.Method, route, statusClass(wrapped.statusCode)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routeTemplate keeps label cardinality bounded by using the matched mux
// template instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusClass converts an HTTP status code to its class, e.g. "4xx".
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
