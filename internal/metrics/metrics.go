// Package metrics exposes smartmarks counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/smartmarks/internal/feed"
	"github.com/starford/smartmarks/internal/models"
)

const namespace = "smartmarks"

// Metrics owns a private registry so tests and multiple servers don't clash.
type Metrics struct {
	registry *prometheus.Registry

	changesTotal    *prometheus.CounterVec
	importsTotal    *prometheus.CounterVec
	importedRecords prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.changesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Bookmark changes published to the feed.",
		},
		[]string{"type"},
	)
	m.importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "files_total",
			Help:      "Inbox files processed, by outcome.",
		},
		[]string{"result"},
	)
	m.importedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "bookmarks_total",
		Help:      "Bookmarks created from inbox files.",
	})
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	m.registry.MustRegister(
		m.changesTotal,
		m.importsTotal,
		m.importedRecords,
		m.requestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// WatchSubscribers exports the live feed subscriber count as a gauge.
func (m *Metrics) WatchSubscribers(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Open change feed subscriptions.",
		},
		func() float64 { return float64(count()) },
	))
}

// Publisher counts every change before handing it to next.
func (m *Metrics) Publisher(next feed.Publisher) feed.Publisher {
	return countingPublisher{next: next, m: m}
}

type countingPublisher struct {
	next feed.Publisher
	m    *Metrics
}

func (p countingPublisher) Publish(c models.Change) {
	p.m.changesTotal.WithLabelValues(string(c.Type)).Inc()
	p.next.Publish(c)
}

// ObserveImport records one processed inbox file.
func (m *Metrics) ObserveImport(imported int, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.importsTotal.WithLabelValues(result).Inc()
	m.importedRecords.Add(float64(imported))
}

// Middleware records request latency labelled with the chi route pattern,
// keeping label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
