package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyp0633/recurcal/recurrence"
)

// Metrics encapsulates the Prometheus instrumentation of the API
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	expansions      *prometheus.CounterVec
	truncated       prometheus.Counter
	occurrences     prometheus.Histogram
}

// NewMetrics registers the API collectors on a private registry. A non-nil
// engine also exports its cache size.
func NewMetrics(engine *recurrence.Engine) *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recurcal_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recurcal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	expansions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recurcal_expansions_total",
		Help: "Recurrence expansions by recurrence type",
	}, []string{"type"})

	truncated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recurcal_expansions_truncated_total",
		Help: "Expansions cut short by the occurrence cap",
	})

	occurrences := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recurcal_expansion_occurrences",
		Help:    "Number of occurrences returned per expansion",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	registry.MustRegister(requestDuration, requestTotal, expansions, truncated, occurrences)

	if engine != nil {
		if _, ok := engine.CacheStats(); ok {
			registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "recurcal_expansion_cache_entries",
				Help: "Active entries in the expansion cache",
			}, func() float64 {
				stats, _ := engine.CacheStats()
				return float64(stats.ActiveEntries)
			}))
		}
	}

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		expansions:      expansions,
		truncated:       truncated,
		occurrences:     occurrences,
	}
}

// Handler exposes the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveExpansion records the outcome of one expansion
func (m *Metrics) ObserveExpansion(t recurrence.Frequency, result recurrence.Expansion) {
	m.expansions.WithLabelValues(string(t)).Inc()
	m.occurrences.Observe(float64(len(result.Dates)))
	if result.Truncated {
		m.truncated.Inc()
	}
}

// Middleware records request count and latency by route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		m.requestTotal.WithLabelValues(labels...).Inc()
		m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
