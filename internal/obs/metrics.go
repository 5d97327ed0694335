package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Directory metrics. Attempts are counted per operation and outcome so a
// flapping controller shows up as a rising retry count before it becomes an
// outage.
var (
	directoryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_attempts_total",
			Help: "Directory operation attempts by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	directoryRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_retries_total",
			Help: "Directory attempts beyond the first, by operation.",
		},
		[]string{"operation"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		directoryAttemptsTotal,
		directoryRetriesTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDirectoryAttempt records one directory attempt outcome. Wired into
// the retry executor's attempt observer.
func ObserveDirectoryAttempt(op string, attempt int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	directoryAttemptsTotal.WithLabelValues(op, outcome).Inc()
	if attempt > 1 {
		directoryRetriesTotal.WithLabelValues(op).Inc()
	}
}

// Instrument measures request rate, latency and in-flight count.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
