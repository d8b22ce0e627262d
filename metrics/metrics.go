package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournament_engine"

// Исходы ходов вето.
const (
	VetoAccepted      = "accepted"
	VetoNotYourTurn   = "not_your_turn"
	VetoPositionTaken = "position_taken"
	VetoInvalid       = "invalid"
	VetoRateLimited   = "rate_limited"
)

type Metrics struct {
	registry *prometheus.Registry

	vetoSubmissions  *prometheus.CounterVec
	vetoSyncErrors   prometheus.Counter
	vetoAdminActions *prometheus.CounterVec
	staleSessions    prometheus.Gauge

	bracketIssues      *prometheus.CounterVec
	bracketCorrections prometheus.Counter
	matchCompletions   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		vetoSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "veto",
			Name:      "submissions_total",
			Help:      "Veto action submissions by outcome.",
		}, []string{"result"}),
		vetoSyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "veto",
			Name:      "turn_sync_errors_total",
			Help:      "State reads that found the turn pointer out of sync with the action log.",
		}),
		vetoAdminActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "veto",
			Name:      "admin_actions_total",
			Help:      "Administrative veto cleanups by kind.",
		}, []string{"action"}),
		staleSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "veto",
			Name:      "stale_sessions",
			Help:      "Unfinished sessions past the staleness window at the last audit.",
		}),
		bracketIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bracket",
			Name:      "issues_found_total",
			Help:      "Bracket invariant violations reported by health checks.",
		}, []string{"kind"}),
		bracketCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bracket",
			Name:      "corrections_applied_total",
			Help:      "Corrections written by bracket repair.",
		}),
		matchCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "completions_total",
			Help:      "Match completion requests by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.vetoSubmissions,
		m.vetoSyncErrors,
		m.vetoAdminActions,
		m.staleSessions,
		m.bracketIssues,
		m.bracketCorrections,
		m.matchCompletions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) VetoSubmission(result string) {
	if m == nil {
		return
	}
	m.vetoSubmissions.WithLabelValues(result).Inc()
}

func (m *Metrics) VetoSyncError() {
	if m == nil {
		return
	}
	m.vetoSyncErrors.Inc()
}

func (m *Metrics) VetoAdminAction(action string) {
	if m == nil {
		return
	}
	m.vetoAdminActions.WithLabelValues(action).Inc()
}

func (m *Metrics) StaleSessions(n int) {
	if m == nil {
		return
	}
	m.staleSessions.Set(float64(n))
}

func (m *Metrics) BracketIssue(kind string) {
	if m == nil {
		return
	}
	m.bracketIssues.WithLabelValues(kind).Inc()
}

func (m *Metrics) BracketCorrections(n int) {
	if m == nil {
		return
	}
	m.bracketCorrections.Add(float64(n))
}

func (m *Metrics) MatchCompletion(result string) {
	if m == nil {
		return
	}
	m.matchCompletions.WithLabelValues(result).Inc()
}
