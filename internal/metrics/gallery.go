package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fastload"

// Gallery and codec Prometheus metrics.
var (
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gallery_scan_duration_seconds",
			Help:      "Directory scan duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ScannedFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gallery_scanned_files_total",
			Help:      "Total images indexed by directory scans",
		},
	)

	ScanErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gallery_scan_errors_total",
			Help:      "Total failed directory scans",
		},
	)

	IndexCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_cache_total",
			Help:      "Gallery index cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	HashLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hash_lookups_total",
			Help:      "Content hash lookups by result",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CodecOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_operations_total",
			Help:      "Control list encode/decode operations",
		},
		[]string{"op", "status"},
	)
)

var registerGallery sync.Once

// RegisterGalleryMetrics registers the gallery and codec metrics. Safe to call more than once.
func RegisterGalleryMetrics() {
	registerGallery.Do(func() {
		prometheus.MustRegister(ScanDuration)
		prometheus.MustRegister(ScannedFilesTotal)
		prometheus.MustRegister(ScanErrorsTotal)
		prometheus.MustRegister(IndexCacheTotal)
		prometheus.MustRegister(HashLookupsTotal)
		prometheus.MustRegister(CodecOperationsTotal)
	})
}

// CodecStatus returns the status label for a codec operation outcome.
func CodecStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
