// metrics/metrics.go

// Package metrics holds the Prometheus collectors of the engine and small
// helpers to update them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "pip"

	LabelConnection = "connection"
	LabelResult     = "result"
	LabelOutcome    = "outcome"
	LabelReason     = "reason"
	LabelHttpPath   = "path"
	LabelHttpMethod = "method"
	LabelHttpCode   = "code"
)

// Cache lookup results.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultStale    = "stale"
	ResultTerminal = "terminal"
	ResultBypass   = "bypass"
)

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by connection and result.",
		},
		[]string{LabelConnection, LabelResult},
	)

	cacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed from the cache for any reason.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held.",
		},
	)

	cacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "bytes",
			Help:      "Approximate memory held by cached attribute bags.",
		},
	)

	upstreamFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetches_total",
			Help:      "Connector fetches by connection and outcome.",
		},
		[]string{LabelConnection, LabelOutcome},
	)

	upstreamLatency prometheus.ObserverVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Histogram of connector fetch latencies.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelConnection},
	)

	resolutionLatency prometheus.ObserverVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Histogram of attribute resolution latencies.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelOutcome},
	)

	connectionTests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "connection_tests_total",
			Help:      "Connection tests by failure reason; empty reason means success.",
		},
		[]string{LabelReason},
	)

	httpRequestLatency prometheus.ObserverVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of latencies for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelHttpPath, LabelHttpMethod, LabelHttpCode},
	)
)

// InitializeCollectors registers every collector with r. A nil r is a no-op
// so tests can skip registration.
func InitializeCollectors(r prometheus.Registerer) {
	if r == nil {
		return
	}
	r.MustRegister(
		cacheLookups,
		cacheEvictions,
		cacheEntries,
		cacheBytes,
		upstreamFetches,
		upstreamLatency,
		resolutionLatency,
		connectionTests,
		httpRequestLatency,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func CacheLookup(connectionID, result string) {
	cacheLookups.WithLabelValues(connectionID, result).Inc()
}

func CacheEvicted() {
	cacheEvictions.Inc()
}

func CacheSize(entries int, bytes int64) {
	cacheEntries.Set(float64(entries))
	cacheBytes.Set(float64(bytes))
}

func UpstreamFetch(connectionID, outcome string, took time.Duration) {
	upstreamFetches.WithLabelValues(connectionID, outcome).Inc()
	upstreamLatency.WithLabelValues(connectionID).Observe(took.Seconds())
}

func Resolution(outcome string, took time.Duration) {
	resolutionLatency.WithLabelValues(outcome).Observe(took.Seconds())
}

func ConnectionTest(reason string) {
	connectionTests.WithLabelValues(reason).Inc()
}

func HTTPRequest(path, method string, code int, took time.Duration) {
	httpRequestLatency.WithLabelValues(path, method, strconv.Itoa(code)).Observe(took.Seconds())
}
