package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP traffic and the
// change-detection engine.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	runsTotal         *prometheus.CounterVec
	changeEventsTotal *prometheus.CounterVec
	coverageRatio     prometheus.Histogram
	diffSkippedTotal  prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "followlytics",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followlytics",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followlytics",
		Subsystem: "engine",
		Name:      "scan_runs_total",
		Help:      "Scan runs finished, by outcome (completed, skipped, failed).",
	}, []string{"outcome"})

	changeEventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followlytics",
		Subsystem: "engine",
		Name:      "change_events_total",
		Help:      "Change events appended to the event log, by type.",
	}, []string{"type"})

	coverageRatio := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "followlytics",
		Subsystem: "engine",
		Name:      "coverage_ratio",
		Help:      "Extracted/known coverage ratio observed per completed run.",
		Buckets:   []float64{0.1, 0.25, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0, 1.1, 1.5},
	})

	diffSkippedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "followlytics",
		Subsystem: "engine",
		Name:      "diff_skipped_total",
		Help:      "Runs whose diff was skipped because coverage was below the trust threshold.",
	})

	for _, c := range []prometheus.Collector{
		requestDuration, requestTotal, runsTotal, changeEventsTotal, coverageRatio, diffSkippedTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:          registry,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		runsTotal:         runsTotal,
		changeEventsTotal: changeEventsTotal,
		coverageRatio:     coverageRatio,
		diffSkippedTotal:  diffSkippedTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run and its outcome.
func (c *Collector) ObserveRun(outcome string) {
	c.runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCoverage records the coverage ratio of a completed run.
func (c *Collector) ObserveCoverage(ratio float64) {
	c.coverageRatio.Observe(ratio)
}

// ObserveSkippedDiff records a run whose diff was suppressed by the coverage gate.
func (c *Collector) ObserveSkippedDiff() {
	c.diffSkippedTotal.Inc()
}

// AddChangeEvents records appended change events by type.
func (c *Collector) AddChangeEvents(eventType string, n int) {
	if n > 0 {
		c.changeEventsTotal.WithLabelValues(eventType).Add(float64(n))
	}
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
