package metrics

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion metrics are managed by the MetricsManager singleton. These
// variables stay nil when business metrics are disabled.
var (
	ingestionDuration *prometheus.HistogramVec
	ingestionTotal    *prometheus.CounterVec
	blobsStored       *prometheus.CounterVec
	blobsFailed       *prometheus.CounterVec
)

// initializeIngestMetrics initializes ingestion metrics if they haven't been initialized yet
func initializeIngestMetrics() {
	if ingestionDuration != nil {
		return // Already initialized
	}

	ingestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotate_ingestion_duration_seconds",
			Help:    "Time spent ingesting one task source into the store",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)

	ingestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotate_ingestion_total",
			Help: "Total number of ingestion operations",
		},
		[]string{"source", "status"},
	)

	blobsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotate_blobs_stored_total",
			Help: "Total number of blobs successfully stored",
		},
		[]string{"source"},
	)

	blobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotate_blobs_failed_total",
			Help: "Total number of blobs that failed to store",
		},
		[]string{"source"},
	)

	// Register with the singleton registry
	mm := GetInstance()
	mm.registry.MustRegister(
		ingestionDuration,
		ingestionTotal,
		blobsStored,
		blobsFailed,
	)
}

// RecordIngestion records metrics for one ingestion source.
func RecordIngestion(source string, startTime time.Time, status string, storedCount, failedCount int) {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeIngestMetrics()

	duration := time.Since(startTime).Seconds()

	ingestionDuration.WithLabelValues(source, status).Observe(duration)
	ingestionTotal.WithLabelValues(source, status).Inc()
	blobsStored.WithLabelValues(source).Add(float64(storedCount))
	if failedCount > 0 {
		blobsFailed.WithLabelValues(source).Add(float64(failedCount))
	}
}
