// Package metrics provides Prometheus metrics for the type catalog
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Recording methods are safe on a nil
// receiver so library code can run without metrics.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Graph query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheClearsTotal prometheus.Counter

	// Snapshot metrics
	SnapshotsCreatedTotal prometheus.Counter
	TemporalLookupsTotal  *prometheus.CounterVec

	// Schema metrics
	SchemaResolutionsTotal   *prometheus.CounterVec
	SchemaResolutionDuration prometheus.Histogram
	SchemaProperties         prometheus.Histogram

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typecatalog_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "typecatalog_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "typecatalog_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typecatalog_graph_queries_total",
			Help: "Total number of graph queries",
		},
		[]string{"kind", "status"},
	)

	m.QueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "typecatalog_graph_query_duration_seconds",
			Help:    "Duration of graph queries in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"},
	)

	m.QueryRows = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "typecatalog_graph_query_rows",
			Help:    "Rows or quads returned per graph query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"kind"},
	)

	m.CacheHitsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "typecatalog_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	m.CacheMissesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "typecatalog_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	m.CacheClearsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "typecatalog_cache_clears_total",
			Help: "Total number of full cache invalidations",
		},
	)

	m.SnapshotsCreatedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "typecatalog_snapshots_created_total",
			Help: "Total number of configuration snapshots created",
		},
	)

	m.TemporalLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typecatalog_temporal_lookups_total",
			Help: "Total number of point-in-time snapshot lookups",
		},
		[]string{"result"},
	)

	m.SchemaResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typecatalog_schema_resolutions_total",
			Help: "Total number of schema resolutions",
		},
		[]string{"status"},
	)

	m.SchemaResolutionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "typecatalog_schema_resolution_duration_seconds",
			Help:    "Duration of schema resolutions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.SchemaProperties = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "typecatalog_schema_properties",
			Help:    "Top-level properties per resolved schema",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "typecatalog_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// StartUptime updates the uptime gauge until stop is closed
func (m *Metrics) StartUptime(stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordQuery records a graph query
func (m *Metrics) RecordQuery(kind string, duration time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, status(err)).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.QueryRows.WithLabelValues(kind).Observe(float64(rows))
}

// RecordCacheHit counts a cache hit
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss counts a cache miss
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordCacheClear counts a full invalidation
func (m *Metrics) RecordCacheClear() {
	if m == nil {
		return
	}
	m.CacheClearsTotal.Inc()
}

// RecordSnapshotCreated counts a new snapshot
func (m *Metrics) RecordSnapshotCreated() {
	if m == nil {
		return
	}
	m.SnapshotsCreatedTotal.Inc()
}

// RecordTemporalLookup counts a point-in-time lookup
func (m *Metrics) RecordTemporalLookup(found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.TemporalLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSchemaResolution records a schema resolution
func (m *Metrics) RecordSchemaResolution(duration time.Duration, properties int, err error) {
	if m == nil {
		return
	}
	m.SchemaResolutionsTotal.WithLabelValues(status(err)).Inc()
	m.SchemaResolutionDuration.Observe(duration.Seconds())
	if err == nil {
		m.SchemaProperties.Observe(float64(properties))
	}
}
