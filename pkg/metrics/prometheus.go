package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scanner/internal/model"
)

// Manager owns every scanner metric. It satisfies the recorder interfaces of
// the emitter and the poll loop.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Presence
	eventsEmitted   *prometheus.CounterVec
	sessionsStored  prometheus.Counter
	sessionsSkipped prometheus.Counter
	storeErrors     prometheus.Counter

	// Polling
	ticks            prometheus.Counter
	providerFailures prometheus.Counter
	queryDuration    prometheus.Histogram
	trackedPlayers   prometheus.Gauge
	onlinePlayers    prometheus.Gauge
	sampleRatio      prometheus.Gauge
	pollInterval     prometheus.Gauge
	absenceThreshold prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager on its own registry unless one is
// supplied. Go runtime and process collectors are always registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scanner",
		subsystem:        "presence",
		histogramBuckets: prometheus.DefBuckets,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.eventsEmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_emitted_total",
		Help:      "Total number of stored presence events by kind",
	}, []string{"kind"})

	m.sessionsStored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_recorded_total",
		Help:      "Total number of play sessions written",
	})

	m.sessionsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_skipped_total",
		Help:      "Total number of zero minute sessions not written",
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of failed store writes",
	})

	m.ticks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ticks_total",
		Help:      "Total number of successful status polls",
	})

	m.providerFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_failures_total",
		Help:      "Total number of failed status polls",
	})

	m.queryDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_duration_seconds",
		Help:      "Duration of status queries, successful or not",
		Buckets:   m.histogramBuckets,
	})

	m.trackedPlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_players",
		Help:      "Players currently believed online",
	})

	m.onlinePlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "online_players",
		Help:      "Online count reported by the server",
	})

	m.sampleRatio = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sample_ratio",
		Help:      "Identifiable sample size divided by the online count",
	})

	m.pollInterval = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_interval_seconds",
		Help:      "Interval until the next poll",
	})

	m.absenceThreshold = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "absence_threshold_seconds",
		Help:      "Absence after which a tracked player is declared gone",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})
}

func (m *Manager) EventEmitted(kind model.EventKind) {
	m.eventsEmitted.WithLabelValues(string(kind)).Inc()
}

func (m *Manager) SessionRecorded() { m.sessionsStored.Inc() }
func (m *Manager) SessionSkipped()  { m.sessionsSkipped.Inc() }
func (m *Manager) StoreError()      { m.storeErrors.Inc() }

// QueryObserved records one status query
func (m *Manager) QueryObserved(d time.Duration, err error) {
	m.queryDuration.Observe(d.Seconds())
	if err != nil {
		m.providerFailures.Inc()
	}
}

// TickCompleted records the state left behind by one successful poll
func (m *Manager) TickCompleted(tracked, online int, ratio float64, interval, threshold time.Duration) {
	m.ticks.Inc()
	m.trackedPlayers.Set(float64(tracked))
	m.onlinePlayers.Set(float64(online))
	m.sampleRatio.Set(ratio)
	m.pollInterval.Set(interval.Seconds())
	m.absenceThreshold.Set(threshold.Seconds())
}

// TrackedPlayers overwrites the tracked player gauge, used after a flush
func (m *Manager) TrackedPlayers(n int) {
	m.trackedPlayers.Set(float64(n))
}

// HTTPRequest records one served request
func (m *Manager) HTTPRequest(route, method, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
