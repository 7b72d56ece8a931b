// Package telemetry records prometheus metrics for workflow runs, LLM calls
// and web searches. Metrics are served on the HTTP server's /metrics route.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quester/config"
	"quester/internal/workflow"
)

// Telemetry aggregates the collectors. A disabled Telemetry keeps every
// method a no-op so callers never branch.
type Telemetry struct {
	enabled bool

	stepExecutions *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	runOutcomes    *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	searches       *prometheus.CounterVec
}

// New registers the collectors on the default prometheus registry.
func New(cfg config.TelemetryConfig) *Telemetry {
	return NewWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on a caller-supplied registry, used by tests.
func NewWithRegistry(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{enabled: cfg.Enabled}
	if !t.enabled {
		return t
	}
	t.stepExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quester_step_executions_total",
		Help: "Workflow step executions by step name and outcome.",
	}, []string{"step", "outcome"})
	t.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quester_step_duration_seconds",
		Help:    "Workflow step execution latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	t.runOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quester_run_outcomes_total",
		Help: "Run terminations by final status.",
	}, []string{"status"})
	t.llmRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quester_llm_requests_total",
		Help: "LLM calls by logical model and outcome.",
	}, []string{"model", "outcome"})
	t.llmDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quester_llm_duration_seconds",
		Help:    "LLM call latency by logical model.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"model"})
	t.searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quester_search_requests_total",
		Help: "Web search calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	reg.MustRegister(t.stepExecutions, t.stepDuration, t.runOutcomes, t.llmRequests, t.llmDuration, t.searches)
	return t
}

// RecordStep satisfies workflow.Metrics.
func (t *Telemetry) RecordStep(step string, d time.Duration, err error) {
	if !t.enabled {
		return
	}
	t.stepExecutions.WithLabelValues(step, outcome(err)).Inc()
	t.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordRun satisfies workflow.Metrics.
func (t *Telemetry) RecordRun(status workflow.Status) {
	if !t.enabled {
		return
	}
	t.runOutcomes.WithLabelValues(string(status)).Inc()
}

// RecordLLM observes one model call.
func (t *Telemetry) RecordLLM(model string, d time.Duration, err error) {
	if !t.enabled {
		return
	}
	t.llmRequests.WithLabelValues(model, outcome(err)).Inc()
	t.llmDuration.WithLabelValues(model).Observe(d.Seconds())
}

// RecordSearch observes one web search call.
func (t *Telemetry) RecordSearch(provider string, err error) {
	if !t.enabled {
		return
	}
	t.searches.WithLabelValues(provider, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
