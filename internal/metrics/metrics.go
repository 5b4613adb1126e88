package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kimchi",
			Name:      "cycle_total",
			Help:      "Completed refresh cycles by result.",
		},
		[]string{"result"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kimchi",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of refresh cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	sourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kimchi",
			Name:      "source_errors_total",
			Help:      "Failed quote fetches by source.",
		},
		[]string{"source"},
	)

	premiumPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kimchi",
			Name:      "premium_percent",
			Help:      "Most recently computed kimchi premium.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kimchi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		cycles,
		cycleDuration,
		sourceErrors,
		premiumPercent,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordCycle records the outcome of one refresh cycle.
func RecordCycle(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	cycles.WithLabelValues(result).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// RecordSourceError counts a failed fetch.
func RecordSourceError(source string) {
	sourceErrors.WithLabelValues(source).Inc()
}

// SetPremium publishes the latest premium.
func SetPremium(v float64) {
	premiumPercent.Set(v)
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// route is used as the path label to keep cardinality bounded.
func InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(strings.ToUpper(r.Method), route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack is required by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
