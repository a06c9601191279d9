package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the orchestrator's Prometheus collectors. A nil *Manager
// records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	transitions      *prometheus.CounterVec
	calendarFailures *prometheus.CounterVec
	dispatchResults  *prometheus.CounterVec
	dispatchLatency  *prometheus.HistogramVec
	commandDuration  *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors go to the default registerer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leadify",
		subsystem:        "meetings",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.transitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lifecycle_transitions_total",
		Help:      "Lifecycle operations by operation and outcome",
	}, []string{"operation", "outcome"})

	m.calendarFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calendar_failures_total",
		Help:      "Calendar provider failures by operation",
	}, []string{"operation"})

	m.dispatchResults = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_total",
		Help:      "Per-recipient notification outcomes",
	}, []string{"channel", "outcome", "reason"})

	m.dispatchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_duration_seconds",
		Help:      "Time to deliver one notification",
		Buckets:   m.histogramBuckets,
	}, []string{"channel"})

	m.commandDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "command_duration_seconds",
		Help:      "End-to-end command handling time",
		Buckets:   m.histogramBuckets,
	}, []string{"command"})
}

func (m *Manager) active() bool {
	return m != nil && m.enabled
}

// RecordTransition counts a lifecycle operation
func (m *Manager) RecordTransition(operation, outcome string) {
	if !m.active() {
		return
	}
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

// RecordCalendarFailure counts a calendar provider failure
func (m *Manager) RecordCalendarFailure(operation string) {
	if !m.active() {
		return
	}
	m.calendarFailures.WithLabelValues(operation).Inc()
}

// RecordDispatch counts one recipient outcome and its latency
func (m *Manager) RecordDispatch(channel, outcome, reason string, d time.Duration) {
	if !m.active() {
		return
	}
	m.dispatchResults.WithLabelValues(channel, outcome, reason).Inc()
	m.dispatchLatency.WithLabelValues(channel).Observe(d.Seconds())
}

// ObserveCommand records how long a command took
func (m *Manager) ObserveCommand(command string, d time.Duration) {
	if !m.active() {
		return
	}
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}
