package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry                *prometheus.Registry
	httpRequests            *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	registryRequests        *prometheus.CounterVec
	registryRequestDuration *prometheus.HistogramVec
	addressesRejected       *prometheus.CounterVec
	locationsMatched        *prometheus.CounterVec
	runsTotal               *prometheus.CounterVec
	runDuration             prometheus.Histogram
}

// New creates a fresh Metrics registry with HTTP, registry and matching metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peeringmatcher",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed in serve mode",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peeringmatcher",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served in serve mode",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registryRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peeringmatcher",
		Name:      "registry_requests_total",
		Help:      "Registry lookups by source, operation and outcome",
	}, []string{"source", "op", "outcome"})

	registryRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peeringmatcher",
		Name:      "registry_request_duration_seconds",
		Help:      "Duration of registry lookups",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source", "op"})

	addressesRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peeringmatcher",
		Name:      "addresses_rejected_total",
		Help:      "Registry addresses dropped from display because they failed validation",
	}, []string{"kind"})

	locationsMatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peeringmatcher",
		Name:      "locations_matched_total",
		Help:      "Locations that met the threshold rule",
	}, []string{"kind"})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peeringmatcher",
		Name:      "runs_total",
		Help:      "Match runs by outcome",
	}, []string{"outcome"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "peeringmatcher",
		Name:      "run_duration_seconds",
		Help:      "Duration of match runs from request to assembled report",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		registryRequests,
		registryRequestDuration,
		addressesRejected,
		locationsMatched,
		runsTotal,
		runDuration,
	)

	return &Metrics{
		registry:                registry,
		httpRequests:            httpRequests,
		httpRequestDuration:     httpRequestDuration,
		registryRequests:        registryRequests,
		registryRequestDuration: registryRequestDuration,
		addressesRejected:       addressesRejected,
		locationsMatched:        locationsMatched,
		runsTotal:               runsTotal,
		runDuration:             runDuration,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRegistryRequest records one registry lookup.
func (m *Metrics) ObserveRegistryRequest(source, op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.registryRequests.WithLabelValues(source, op, outcome).Inc()
	m.registryRequestDuration.WithLabelValues(source, op).Observe(duration.Seconds())
}

func (m *Metrics) IncAddressRejected(kind string) {
	if m == nil {
		return
	}
	m.addressesRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddLocationsMatched(kind string, n int) {
	if m == nil {
		return
	}
	m.locationsMatched.WithLabelValues(kind).Add(float64(n))
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
