package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/weave/pkg/domain"
)

// Metrics collects engine activity.
type Metrics struct {
	registry *prometheus.Registry

	Rounds       *prometheus.CounterVec
	Evaluations  *prometheus.CounterVec
	Stalled      *prometheus.GaugeVec
	RoundSeconds *prometheus.HistogramVec
	StepVisits   *prometheus.CounterVec
	Running      *prometheus.GaugeVec
	Reconciles   *prometheus.CounterVec
	Invalidated  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a private
// registry, alongside the Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weave_rounds_total",
			Help: "Total number of dataflow rounds",
		}, []string{"graph"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weave_block_evaluations_total",
			Help: "Total number of Computable blocks evaluated",
		}, []string{"graph"}),
		Stalled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weave_stalled_blocks",
			Help: "Blocks left unevaluated by a dependency cycle in the last round",
		}, []string{"graph"}),
		RoundSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weave_round_duration_seconds",
			Help:    "Duration of dataflow rounds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"graph"}),
		StepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weave_step_visits_total",
			Help: "Total number of step activations",
		}, []string{"procedure", "kind"}),
		Running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weave_running_instances",
			Help: "Procedure instances currently running",
		}, []string{"procedure"}),
		Reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weave_reconciliations_total",
			Help: "Total number of schema reconciliations applied",
		}, []string{"target", "positional"}),
		Invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weave_invalidations_total",
			Help: "Total number of blocks flipped invalid",
		}, []string{"block"}),
	}
	m.registry.MustRegister(
		m.Rounds, m.Evaluations, m.Stalled, m.RoundSeconds,
		m.StepVisits, m.Running, m.Reconciles, m.Invalidated,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests or to add
// host-specific collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that feed the collectors. Combine them with
// other hooks via domain.CombineHooks.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRound: func(_ context.Context, e *domain.RoundEvent) {
			m.Rounds.WithLabelValues(e.Graph).Inc()
			m.Evaluations.WithLabelValues(e.Graph).Add(float64(e.Evaluated))
			m.Stalled.WithLabelValues(e.Graph).Set(float64(len(e.Stalled)))
			m.RoundSeconds.WithLabelValues(e.Graph).Observe(e.Duration.Seconds())
		},
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(e.Procedure, e.Kind).Inc()
		},
		OnProcedureStart: func(_ context.Context, e *domain.ProcedureEvent) {
			m.Running.WithLabelValues(e.Procedure).Inc()
		},
		OnProcedureStop: func(_ context.Context, e *domain.ProcedureEvent) {
			m.Running.WithLabelValues(e.Procedure).Dec()
		},
		OnReconcile: func(_ context.Context, e *domain.ReconcileEvent) {
			positional := "false"
			if e.Positional > 0 {
				positional = "true"
			}
			m.Reconciles.WithLabelValues(e.Target, positional).Inc()
		},
		OnInvalid: func(_ context.Context, e *domain.InvalidEvent) {
			m.Invalidated.WithLabelValues(e.BlockName).Inc()
		},
	}
}
