// Package metrics provides Prometheus metrics for the docshelf client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_client_requests_total",
			Help: "Total number of backend requests issued",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docshelf_client_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Upload metrics
	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docshelf_upload_bytes_total",
			Help: "Total bytes sent to the upload endpoint",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_uploads_total",
			Help: "Total number of document uploads",
		},
		[]string{"status"},
	)

	uploadRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_upload_rejections_total",
			Help: "Uploads rejected client-side before any network call",
		},
		[]string{"reason"},
	)

	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_cache_lookups_total",
			Help: "Query cache lookups by outcome (hit, miss, shared)",
		},
		[]string{"kind", "outcome"},
	)

	cacheFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docshelf_cache_fetch_duration_seconds",
			Help:    "Time spent fetching a query key from the backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)

	cacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_cache_invalidations_total",
			Help: "Cache entries marked stale by invalidation",
		},
		[]string{"kind"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docshelf_cache_entries",
			Help: "Number of entries held by the query cache",
		},
	)

	cacheSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docshelf_cache_subscribers",
			Help: "Number of active cache event subscribers",
		},
	)

	// Mutation metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_mutations_total",
			Help: "Total mutations by name and status",
		},
		[]string{"name", "status"},
	)

	// Session metrics
	sessionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docshelf_session_checks_total",
			Help: "Session verification attempts by result",
		},
		[]string{"result"},
	)

	// Breaker metrics
	backendOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docshelf_backend_online",
			Help: "1 when the backend circuit breaker is not open",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a backend request metric.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordUpload records a document upload.
func RecordUpload(bytes int64, success bool) {
	if success {
		uploadBytesTotal.Add(float64(bytes))
	}
	uploadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordUploadRejected records an upload rejected by client-side validation.
func RecordUploadRejected(reason string) {
	uploadRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordCacheLookup records a cache lookup outcome.
func RecordCacheLookup(kind, outcome string) {
	cacheLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordCacheFetch records a completed fetch for a query key.
func RecordCacheFetch(kind string, duration time.Duration, success bool) {
	cacheFetchDuration.WithLabelValues(kind, statusLabel(success)).Observe(duration.Seconds())
}

// RecordCacheInvalidation records entries marked stale.
func RecordCacheInvalidation(kind string, count int) {
	cacheInvalidationsTotal.WithLabelValues(kind).Add(float64(count))
}

// SetCacheEntries sets the number of cache entries.
func SetCacheEntries(count int) {
	cacheEntries.Set(float64(count))
}

// SetCacheSubscribers sets the number of cache event subscribers.
func SetCacheSubscribers(count int) {
	cacheSubscribers.Set(float64(count))
}

// RecordMutation records a mutation outcome.
func RecordMutation(name string, success bool) {
	mutationsTotal.WithLabelValues(name, statusLabel(success)).Inc()
}

// RecordSessionCheck records a session verification result.
func RecordSessionCheck(result string) {
	sessionChecksTotal.WithLabelValues(result).Inc()
}

// SetBackendOnline records the breaker state.
func SetBackendOnline(online bool) {
	if online {
		backendOnline.Set(1)
		return
	}
	backendOnline.Set(0)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Transport is an http.RoundTripper that records request metrics.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper. Transport failures are recorded with
// status 0.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	RecordHTTPRequest(req.Method, status, time.Since(start))
	return resp, err
}
