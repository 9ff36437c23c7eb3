// Package metrics provides Prometheus metrics for the directory cache and the
// document pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Directory cache metrics
	dirScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetree_dir_scans_total",
			Help: "Total directory scans issued against storage",
		},
		[]string{"status"},
	)

	dirScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codetree_dir_scan_duration_seconds",
			Help:    "Directory scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetree_cache_lookups_total",
			Help: "Directory loads by outcome (hit, join, miss)",
		},
		[]string{"result"},
	)

	cacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codetree_cache_invalidations_total",
			Help: "Total cache entries removed by invalidation",
		},
	)

	cachedDirs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codetree_cached_directories",
			Help: "Number of directories currently cached",
		},
	)

	prefetchActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codetree_prefetch_active",
			Help: "Number of background prefetch tasks in flight",
		},
	)

	storageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetree_storage_operations_total",
			Help: "Total storage provider operations",
		},
		[]string{"provider", "operation", "status"},
	)

	storageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codetree_storage_operation_duration_seconds",
			Help:    "Storage provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// Document metrics
	documentBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetree_document_bytes_total",
			Help: "Total document bytes moved between storage and buffers",
		},
		[]string{"direction"},
	)

	documentOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetree_document_operations_total",
			Help: "Total document reads and writes",
		},
		[]string{"operation", "status"},
	)

	documentOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codetree_document_operation_duration_seconds",
			Help:    "Document read/write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDirScan records a directory scan against storage.
func RecordDirScan(duration time.Duration, success bool) {
	dirScansTotal.WithLabelValues(status(success)).Inc()
	dirScanDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a load served from an already loaded entry.
func RecordCacheHit() {
	cacheLookupsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheJoin records a load that waited on an in-flight scan of the same path.
func RecordCacheJoin() {
	cacheLookupsTotal.WithLabelValues("join").Inc()
}

// RecordCacheMiss records a load that had to scan storage.
func RecordCacheMiss() {
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordInvalidation records removal of a cached directory.
func RecordInvalidation() {
	cacheInvalidationsTotal.Inc()
}

// SetCachedDirs sets the number of cached directories.
func SetCachedDirs(n int) {
	cachedDirs.Set(float64(n))
}

// PrefetchStarted increments the in-flight prefetch gauge.
func PrefetchStarted() {
	prefetchActive.Inc()
}

// PrefetchFinished decrements the in-flight prefetch gauge.
func PrefetchFinished() {
	prefetchActive.Dec()
}

// RecordStorageOperation records one call into a storage provider
func RecordStorageOperation(provider, operation string, duration time.Duration, success bool) {
	storageOpsTotal.WithLabelValues(provider, operation, status(success)).Inc()
	storageOpDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordDocumentRead records a document read into a buffer.
func RecordDocumentRead(bytes int64, duration time.Duration, success bool) {
	recordDocument("read", "in", bytes, duration, success)
}

// RecordDocumentWrite records a buffer persisted to storage.
func RecordDocumentWrite(bytes int64, duration time.Duration, success bool) {
	recordDocument("write", "out", bytes, duration, success)
}

func recordDocument(op, direction string, bytes int64, duration time.Duration, success bool) {
	documentOpsTotal.WithLabelValues(op, status(success)).Inc()
	documentOpDuration.WithLabelValues(op).Observe(duration.Seconds())
	if success {
		documentBytesTotal.WithLabelValues(direction).Add(float64(bytes))
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
