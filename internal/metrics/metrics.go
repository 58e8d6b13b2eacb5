// Package metrics exposes Prometheus counters for the crawl pipeline.
package metrics

import (
	"time"

	"github.com/aleister1102/postwatch/internal/rslimiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all postwatch metrics.
	MetricsNamespace = "postwatch"
)

// Tick results
const (
	TickUnchanged  = "unchanged"
	TickDispatched = "dispatched"
	TickFetchError = "fetch_error"
	TickEmpty      = "empty"
	TickStale      = "stale"
	TickMissing    = "missing"
	TickPersistErr = "persist_error"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TicksTotal         *prometheus.CounterVec
	TickDuration       prometheus.Histogram
	SkippedOverlaps    prometheus.Counter
	FetchPhaseTotal    *prometheus.CounterVec
	DispatchesTotal    *prometheus.CounterVec
	ScheduledJobs      prometheus.Gauge
	CommandsTotal      *prometheus.CounterVec
	SystemMemoryUsedPc prometheus.GaugeFunc
}

// NewMetrics creates and registers all collectors on reg (the default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}
	m.TicksTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Completed monitor ticks by result",
	}, []string{"result"})

	m.TickDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one monitor tick",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.SkippedOverlaps = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "scheduler",
		Name:      "skipped_overlaps_total",
		Help:      "Firings skipped because the previous tick was still running",
	})

	m.ScheduledJobs = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: "scheduler",
		Name:      "jobs",
		Help:      "Monitors with an active recurring job",
	})

	m.FetchPhaseTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "fetch",
		Name:      "phase_total",
		Help:      "Fetch phase outcomes",
	}, []string{"phase", "result"})

	m.DispatchesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "notifier",
		Name:      "dispatches_total",
		Help:      "Notification attempts by result",
	}, []string{"result"})

	m.CommandsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "commands",
		Name:      "invocations_total",
		Help:      "Slash command invocations by command and result",
	}, []string{"command", "result"})

	m.SystemMemoryUsedPc = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "system_memory_used_percent",
		Help:      "Host memory in use",
	}, func() float64 {
		used, err := rslimiter.SystemMemoryProbe()
		if err != nil {
			return 0
		}
		return used * 100
	})

	return m
}

// ObserveTick records one finished tick.
func (m *Metrics) ObserveTick(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(result).Inc()
	m.TickDuration.Observe(took.Seconds())
}

// SkippedOverlap counts a firing dropped by the in-flight guard.
func (m *Metrics) SkippedOverlap() {
	if m == nil {
		return
	}
	m.SkippedOverlaps.Inc()
}

// FetchPhase records one phase outcome ("ok", "error", "empty", "refused").
func (m *Metrics) FetchPhase(phase, result string) {
	if m == nil {
		return
	}
	m.FetchPhaseTotal.WithLabelValues(phase, result).Inc()
}

// Dispatch records one notification attempt.
func (m *Metrics) Dispatch(delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.DispatchesTotal.WithLabelValues(result).Inc()
}

// SetScheduledJobs sets the active job gauge.
func (m *Metrics) SetScheduledJobs(n int) {
	if m == nil {
		return
	}
	m.ScheduledJobs.Set(float64(n))
}

// Command records one slash command invocation.
func (m *Metrics) Command(name, result string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(name, result).Inc()
}
