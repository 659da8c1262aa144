package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloak_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloak_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cloak_in_flight",
		Help: "In-flight HTTP requests",
	})
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloak_decisions_total",
			Help: "Cloaking decisions by verdict",
		}, []string{"verdict"},
	)
	FilterBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloak_filter_blocks_total",
			Help: "Hard blocks by filter name",
		}, []string{"filter"},
	)
	FingerprintCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloak_fingerprint_cache_total",
			Help: "Fingerprint cache lookups by result",
		}, []string{"result"},
	)
	TelemetryEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cloak_telemetry_events_total",
		Help: "Telemetry events accepted",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, DecisionsTotal,
		FilterBlocksTotal, FingerprintCacheHits, TelemetryEvents)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
