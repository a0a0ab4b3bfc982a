package metrics

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP and annotation metrics are managed by the MetricsManager singleton.
// These variables stay nil when business metrics are disabled.
var (
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections prometheus.Gauge
	AssignmentsTotal      *prometheus.CounterVec
	SubmissionsTotal      *prometheus.CounterVec
	DeclinesTotal         prometheus.Counter
	SaturatedSkipsTotal   prometheus.Counter
)

// initializeHTTPMetrics initializes HTTP metrics if they haven't been initialized yet
func initializeHTTPMetrics() {
	if HTTPRequestsTotal != nil {
		return // Already initialized
	}

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	// Annotation pipeline metrics
	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotate_assignments_total",
			Help: "Total number of worker batch assignments",
		},
		[]string{"result"}, // "created", "reused", "no_eligible_items"
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotate_submissions_total",
			Help: "Total number of item submissions",
		},
		[]string{"result"}, // "recorded", "empty", "failed"
	)

	DeclinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "annotate_declines_total",
			Help: "Total number of workers declining consent",
		},
	)

	SaturatedSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "annotate_saturated_skips_total",
			Help: "Total number of saturated items excluded during batch assignment",
		},
	)

	// Register with the singleton registry
	mm := GetInstance()
	mm.registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPActiveConnections,
		AssignmentsTotal,
		SubmissionsTotal,
		DeclinesTotal,
		SaturatedSkipsTotal,
	)
}

// Handler exposes the singleton registry for the /metrics route.
func Handler() http.Handler {
	mm := GetInstance()
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordAssignment records the outcome of a batch assignment.
func RecordAssignment(result string) {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	AssignmentsTotal.WithLabelValues(result).Inc()
}

// RecordSubmission records the outcome of an item submission.
func RecordSubmission(result string) {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordSaturatedSkips counts items excluded from an assignment for being
// saturated.
func RecordSaturatedSkips(n int) {
	if n == 0 || os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	SaturatedSkipsTotal.Add(float64(n))
}

// RecordDecline counts a worker declining consent.
func RecordDecline() {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	DeclinesTotal.Inc()
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	if os.Getenv("ENABLE_BUSINESS_METRICS") != "true" {
		return
	}
	initializeHTTPMetrics()

	HTTPActiveConnections.Dec()
}
