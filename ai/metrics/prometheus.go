// Package metrics provides Prometheus metrics export for the workflow engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenchat/lumen/ai/workflow"
)

// PrometheusExporter exports workflow engine metrics in Prometheus format.
// It implements workflow.Observer and exposes a workflow.Publisher sink for
// the transition-event bus.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Workflow lifecycle metrics
	workflowsTotal   *prometheus.CounterVec
	workflowsActive  prometheus.Gauge
	workflowsParked  prometheus.Gauge
	workflowDuration *prometheus.HistogramVec

	// Phase transition metrics
	transitions *prometheus.CounterVec

	// Clarification metrics
	clarifyResumes prometheus.Counter

	// LLM token metrics
	llmTokensUsed *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for the workflow duration histogram (in seconds)
	DurationBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		DurationBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultConfig().DurationBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.workflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "workflow",
			Name:      "workflows_total",
			Help:      "Total number of finished workflows",
		},
		[]string{"status"},
	)

	e.workflowsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lumen",
			Subsystem: "workflow",
			Name:      "workflows_active",
			Help:      "Number of workflows currently executing",
		},
	)

	e.workflowsParked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lumen",
			Subsystem: "workflow",
			Name:      "workflows_parked",
			Help:      "Number of workflows suspended awaiting user input",
		},
	)

	e.workflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumen",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Active workflow duration in seconds, excluding time parked",
			Buckets:   cfg.DurationBuckets,
		},
		[]string{"status"},
	)

	e.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Total number of phase transitions",
		},
		[]string{"from", "to"},
	)

	e.clarifyResumes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "workflow",
			Name:      "clarification_resumes_total",
			Help:      "Total number of workflows resumed by a clarifying reply",
		},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed by finished workflows",
		},
		[]string{"token_type"},
	)

	registry.MustRegister(
		e.workflowsTotal,
		e.workflowsActive,
		e.workflowsParked,
		e.workflowDuration,
		e.transitions,
		e.clarifyResumes,
		e.llmTokensUsed,
	)

	return e
}

// TransitionSink returns the publisher wired into the engine's event bus.
func (e *PrometheusExporter) TransitionSink() workflow.Publisher {
	return func(ev workflow.TransitionEvent) {
		e.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	}
}

// WorkflowStarted implements workflow.Observer.
func (e *PrometheusExporter) WorkflowStarted() {
	e.workflowsActive.Inc()
}

// WorkflowParked implements workflow.Observer.
func (e *PrometheusExporter) WorkflowParked() {
	e.workflowsActive.Dec()
	e.workflowsParked.Inc()
}

// WorkflowResumed implements workflow.Observer.
func (e *PrometheusExporter) WorkflowResumed() {
	e.workflowsParked.Dec()
	e.workflowsActive.Inc()
	e.clarifyResumes.Inc()
}

// WorkflowEvicted implements workflow.Observer. The dropped workflow never
// resumes, so only the parked gauge moves.
func (e *PrometheusExporter) WorkflowEvicted() {
	e.workflowsParked.Dec()
}

// WorkflowFinished implements workflow.Observer.
func (e *PrometheusExporter) WorkflowFinished(terminal workflow.Phase, usage workflow.TokenUsage, elapsed time.Duration) {
	status := "completed"
	if terminal == workflow.PhaseFailed {
		status = "failed"
	}

	e.workflowsActive.Dec()
	e.workflowsTotal.WithLabelValues(status).Inc()
	e.workflowDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	e.llmTokensUsed.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	e.llmTokensUsed.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	if usage.CacheReadTokens > 0 {
		e.llmTokensUsed.WithLabelValues("cache_read").Add(float64(usage.CacheReadTokens))
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
