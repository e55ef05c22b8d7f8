// Package metrics exposes Prometheus instrumentation for the polling client
// and the simulated backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PollerMetrics tracks the polling lifecycle of analysis sessions.
type PollerMetrics struct {
	registry *prometheus.Registry

	pollsTotal       prometheus.Counter
	transientErrors  prometheus.Counter
	staleDiscards    prometheus.Counter
	stageTransitions *prometheus.CounterVec
	progress         prometheus.Gauge
	sessionsTotal    *prometheus.CounterVec
}

// NewPollerMetrics creates the poller collectors on a private registry so
// multiple sessions in tests do not collide on the default registry.
func NewPollerMetrics() *PollerMetrics {
	m := &PollerMetrics{
		registry: prometheus.NewRegistry(),
		pollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperwatch_polls_total",
			Help: "Total status polls issued",
		}),
		transientErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperwatch_poll_transient_errors_total",
			Help: "Poll cycles that failed transiently and were retried on the next tick",
		}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperwatch_poll_stale_discards_total",
			Help: "Poll responses discarded as stale or post-cancellation",
		}),
		stageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperwatch_stage_transitions_total",
				Help: "Stage activations observed, by stage",
			},
			[]string{"stage"},
		),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paperwatch_session_progress",
			Help: "Progress of the active session (0-100)",
		}),
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperwatch_sessions_total",
				Help: "Sessions finished, by terminal outcome",
			},
			[]string{"outcome"}, // "completed", "error", "reset"
		),
	}

	m.registry.MustRegister(m.pollsTotal)
	m.registry.MustRegister(m.transientErrors)
	m.registry.MustRegister(m.staleDiscards)
	m.registry.MustRegister(m.stageTransitions)
	m.registry.MustRegister(m.progress)
	m.registry.MustRegister(m.sessionsTotal)

	return m
}

// ObservePoll counts one issued poll.
func (m *PollerMetrics) ObservePoll() {
	if m == nil {
		return
	}
	m.pollsTotal.Inc()
}

// ObserveTransientError counts one swallowed poll failure.
func (m *PollerMetrics) ObserveTransientError() {
	if m == nil {
		return
	}
	m.transientErrors.Inc()
}

// ObserveStaleDiscard counts one discarded late or out-of-order response.
func (m *PollerMetrics) ObserveStaleDiscard() {
	if m == nil {
		return
	}
	m.staleDiscards.Inc()
}

// ObserveStage counts one stage activation.
func (m *PollerMetrics) ObserveStage(stage string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(stage).Inc()
}

// SetProgress records the current session progress.
func (m *PollerMetrics) SetProgress(p int) {
	if m == nil {
		return
	}
	m.progress.Set(float64(p))
}

// ObserveSessionEnd counts a finished session by outcome.
func (m *PollerMetrics) ObserveSessionEnd(outcome string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns an HTTP handler serving this registry.
func (m *PollerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for merging with other exporters.
func (m *PollerMetrics) Registry() *prometheus.Registry {
	return m.registry
}
