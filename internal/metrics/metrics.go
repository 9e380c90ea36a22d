// Package metrics holds the prometheus collectors shared by the coordinator,
// the moment service and the ledger. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "momentkey"

// Metrics groups every collector.
type Metrics struct {
	sessions     *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	shares       prometheus.Histogram
	artifacts    *prometheus.CounterVec
	commitments  *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Moment sessions by terminal outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_step_seconds",
			Help:      "Duration of session protocol steps.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"step"}),
		shares: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconstruction_shares",
			Help:      "Shares collected per threshold reconstruction.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Artifact operations by result.",
		}, []string{"op", "result"}),
		commitments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_commitments_total",
			Help:      "Ledger commitments by result.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(m.sessions, m.stepDuration, m.shares, m.artifacts, m.commitments)
	return m
}

// SessionFinished counts a session ending in outcome.
func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
}

// ObserveStep records how long a protocol step took.
func (m *Metrics) ObserveStep(step string, started time.Time) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
}

// SharesCollected records a reconstruction's share count.
func (m *Metrics) SharesCollected(n int) {
	if m == nil {
		return
	}
	m.shares.Observe(float64(n))
}

// Artifact counts an encrypt or decrypt.
func (m *Metrics) Artifact(op string, err error) {
	if m == nil {
		return
	}
	m.artifacts.WithLabelValues(op, result(err)).Inc()
}

// Commitment counts a ledger commit attempt.
func (m *Metrics) Commitment(err error) {
	if m == nil {
		return
	}
	m.commitments.WithLabelValues(result(err)).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
