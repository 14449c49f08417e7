// Package metrics exposes Prometheus collectors for the gateway. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pario-ai/promptgate/pkg/models"
)

// Metrics holds the gateway collectors.
type Metrics struct {
	decisions       *prometheus.CounterVec
	risks           *prometheus.CounterVec
	failures        *prometheus.CounterVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	requestDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptgate_decisions_total",
				Help: "Prompts processed, by decision",
			},
			[]string{"decision"},
		),
		risks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptgate_risk_detections_total",
				Help: "Risk tags attached to prompts, by type",
			},
			[]string{"risk_type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptgate_failures_total",
				Help: "Failed invocations, by error kind",
			},
			[]string{"kind"},
		),
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptgate_upstream_calls_total",
				Help: "Upstream chat-completion calls",
			},
			[]string{"purpose", "status"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptgate_upstream_duration_milliseconds",
				Help:    "Upstream call duration in milliseconds",
				Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000},
			},
			[]string{"purpose"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "promptgate_request_duration_milliseconds",
				Help:    "End-to-end pipeline duration in milliseconds",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000},
			},
		),
	}
	reg.MustRegister(m.decisions, m.risks, m.failures, m.upstreamCalls, m.upstreamLatency, m.requestDuration)
	return m
}

// ObserveDecision counts a decision and its risk tags.
func (m *Metrics) ObserveDecision(d models.Decision, risks []models.RiskType) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d)).Inc()
	for _, r := range risks {
		m.risks.WithLabelValues(string(r)).Inc()
	}
}

// ObserveFailure counts a failed invocation.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// ObserveUpstream records one upstream call. purpose is "completion" or
// "explanation"; status is "ok", "timeout" or "error".
func (m *Metrics) ObserveUpstream(purpose, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(purpose, status).Inc()
	m.upstreamLatency.WithLabelValues(purpose).Observe(float64(d.Milliseconds()))
}

// ObserveRequest records end-to-end pipeline duration.
func (m *Metrics) ObserveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(float64(d.Milliseconds()))
}
