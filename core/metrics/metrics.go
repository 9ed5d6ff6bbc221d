package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records evaluation outcomes for the cbaac service.
type Metrics struct {
	// Verdicts by pass/blocked and tier
	Verdicts *prometheus.CounterVec

	// Warnings emitted across all verdicts
	Warnings prometheus.Counter

	// Chain verdicts by overall outcome
	Chains *prometheus.CounterVec

	// Evaluation latency by operation: evaluate, chain, classify
	EvaluateLatency *prometheus.HistogramVec
}

// New registers the evaluation metrics on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbaac_verdicts_total",
			Help: "Agent verdicts by outcome and trust tier",
		}, []string{"outcome", "tier"}),

		Warnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbaac_verdict_warnings_total",
			Help: "Non-blocking warnings attached to verdicts",
		}),

		Chains: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbaac_chain_verdicts_total",
			Help: "Chain verdicts by overall outcome",
		}, []string{"outcome"}),

		EvaluateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbaac_evaluate_duration_seconds",
			Help:    "Duration of evaluation requests by operation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation"}),
	}
}

func outcome(pass bool) string {
	if pass {
		return "pass"
	}
	return "blocked"
}

// IncrementVerdict records one agent verdict.
func (m *Metrics) IncrementVerdict(pass bool, tier string, warnings int) {
	if m != nil {
		m.Verdicts.WithLabelValues(outcome(pass), tier).Inc()
		m.Warnings.Add(float64(warnings))
	}
}

// IncrementChain records one chain verdict.
func (m *Metrics) IncrementChain(pass bool) {
	if m != nil {
		m.Chains.WithLabelValues(outcome(pass)).Inc()
	}
}

// ObserveEvaluateLatency records how long an operation took.
func (m *Metrics) ObserveEvaluateLatency(operation string, d time.Duration) {
	if m != nil {
		m.EvaluateLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
