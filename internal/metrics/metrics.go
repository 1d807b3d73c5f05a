package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	JobsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_scheduled_total",
			Help: "Jobs handed to the scheduler",
		},
		[]string{"backend", "kind"},
	)

	JobsCanceled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_canceled_total",
			Help: "Pending jobs canceled before firing",
		},
		[]string{"backend"},
	)

	CancelFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_cancel_failures_total",
			Help: "Cancel calls for jobs that already fired or do not exist",
		},
		[]string{"backend"},
	)

	JobsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_fired_total",
			Help: "Jobs executed by the scheduler, by outcome",
		},
		[]string{"backend", "kind", "state"},
	)

	PresenceConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_websocket_connections",
			Help: "Open presence websocket connections",
		},
	)
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			JobsScheduled,
			JobsCanceled,
			CancelFailures,
			JobsFired,
			PresenceConnections,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through to the underlying writer so websocket upgrades survive the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and latency. endpoint maps a request to a bounded label,
// usually its route pattern.
func Middleware(endpoint func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		label := endpoint(r)
		RequestCounter.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
	})
}
