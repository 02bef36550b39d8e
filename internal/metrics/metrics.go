// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skytrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skytrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skytrack_propagations_total",
			Help: "Total propagation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	propagationBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skytrack_propagation_batch_duration_seconds",
			Help:    "Duration of whole-constellation propagation batches.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	propagationWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_propagation_workers_active",
			Help: "Number of propagation workers currently running.",
		},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skytrack_prediction_duration_seconds",
			Help:    "Pass prediction duration in seconds per request.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_tle_dataset_satellites",
			Help: "Number of satellites in the current element dataset.",
		},
	)

	tleDatasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_tle_dataset_age_seconds",
			Help: "Age of the current element dataset in seconds.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skytrack_sky_cache_hits_total",
			Help: "Sky snapshot cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skytrack_sky_cache_misses_total",
			Help: "Sky snapshot cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skytrack_sky_cache_evictions_total",
			Help: "Sky snapshot cache entries evicted.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_sky_cache_entries",
			Help: "Sky snapshot cache entries currently held.",
		},
	)

	cacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_sky_cache_size_bytes",
			Help: "Approximate memory held by the sky snapshot cache.",
		},
	)

	cacheGracePeriodActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_sky_cache_grace_period_active",
			Help: "1 while stale snapshots are served during a dataset cutover.",
		},
	)

	cacheRegenerationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skytrack_sky_cache_regeneration_errors_total",
			Help: "Snapshot regeneration cycles that failed.",
		},
	)

	cacheRegenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skytrack_sky_cache_regeneration_duration_seconds",
			Help:    "Duration of snapshot regeneration cycles in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skytrack_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skytrack_streams_active",
			Help: "SSE stream connections currently open.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skytrack_stream_messages_total",
			Help: "SSE messages sent across all streams.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skytrack_stream_bytes_total",
			Help: "SSE payload bytes sent across all streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skytrack_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		propagationBatchDuration,
		propagationWorkersActive,
		predictionDurationSeconds,
		tleDatasetCount,
		tleDatasetAgeSeconds,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheSizeBytes,
		cacheGracePeriodActive,
		cacheRegenerationErrorsTotal,
		cacheRegenerationDuration,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

// knownRoutes are the exact paths the server registers. Anything else is
// folded into a single label so scanners and bots cannot blow up metric
// cardinality.
var knownRoutes = map[string]bool{
	"/":                   true,
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/v1/passes":      true,
	"/api/v1/sky":         true,
	"/api/v1/sky/stats":   true,
	"/api/v1/satellites":  true,
	"/api/v1/tle/refresh": true,
	"/api/v1/stream/sky":  true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// RecordPropagation records one whole-constellation propagation batch.
func RecordPropagation(duration time.Duration, successCount, errorCount int) {
	propagationBatchDuration.Observe(duration.Seconds())
	propagationsTotal.WithLabelValues("success").Add(float64(successCount))
	propagationsTotal.WithLabelValues("error").Add(float64(errorCount))
}

// SetPropagationWorkersActive sets the active worker gauge.
func SetPropagationWorkersActive(n int) {
	propagationWorkersActive.Set(float64(n))
}

// ObservePredictionDuration records the wall time of one prediction request.
func ObservePredictionDuration(d time.Duration) {
	predictionDurationSeconds.Observe(d.Seconds())
}

// SetTLEDatasetCount sets the satellite count of the current dataset.
func SetTLEDatasetCount(n int) {
	tleDatasetCount.Set(float64(n))
}

// SetTLEDatasetAge sets the age of the current dataset in seconds.
func SetTLEDatasetAge(seconds float64) {
	tleDatasetAgeSeconds.Set(seconds)
}

func IncCacheHits()   { cacheHitsTotal.Inc() }
func IncCacheMisses() { cacheMissesTotal.Inc() }

// AddCacheEvictions adds n to the eviction counter.
func AddCacheEvictions(n int) {
	cacheEvictionsTotal.Add(float64(n))
}

func SetCacheEntries(n int)       { cacheEntries.Set(float64(n)) }
func SetCacheSizeBytes(n int64)   { cacheSizeBytes.Set(float64(n)) }
func IncCacheRegenerationErrors() { cacheRegenerationErrorsTotal.Inc() }

// SetCacheGracePeriodActive flips the grace-period gauge.
func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriodActive.Set(1)
	} else {
		cacheGracePeriodActive.Set(0)
	}
}

// ObserveCacheRegenerationDuration records one regeneration cycle.
func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationDuration.Observe(d.Seconds())
}

// IncStreamConnections counts a stream lifecycle event, "connect" or
// "disconnect".
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

func IncStreamsActive()  { streamsActive.Inc() }
func DecStreamsActive()  { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds n payload bytes to the stream byte counter.
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// IncStreamErrors counts one stream error with the given reason label.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}
