// Package metrics provides Prometheus instrumentation for the research
// loop's turn cadence, tool latency, and compaction activity. Carried as
// ambient observability even though spec.md's Non-goals exclude
// analytics event tracking for product entities — this is runtime
// telemetry, not a product feature.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder groups the research loop's counters and histograms. The loop
// records TurnsTotal and CompactionCounter; nothing in this module records
// the LLM request, tool execution, or session status metrics.
type Recorder struct {
	TurnsTotal            *prometheus.CounterVec
	LLMRequestDuration    *prometheus.HistogramVec
	LLMRequestCounter     *prometheus.CounterVec
	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec
	CompactionCounter     *prometheus.CounterVec
	SessionStatusCounter  *prometheus.CounterVec
}

// New registers a fresh set of metrics on reg. Pass
// prometheus.DefaultRegisterer for the usual process-wide /metrics
// endpoint, or a private registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloopd_turns_total",
				Help: "Total number of research loop turns processed.",
			},
			[]string{"outcome"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentloopd_llm_request_duration_seconds",
				Help:    "Duration of typed LLM client calls.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"vendor", "model"},
		),
		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloopd_llm_requests_total",
				Help: "Total LLM requests by vendor, model, and status.",
			},
			[]string{"vendor", "model", "status"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloopd_tool_executions_total",
				Help: "Total tool dispatches by tool name and status.",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentloopd_tool_execution_duration_seconds",
				Help:    "Duration of tool handler invocations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		CompactionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloopd_compactions_total",
				Help: "Total history compactions by outcome.",
			},
			[]string{"outcome"},
		),
		SessionStatusCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloopd_session_status_transitions_total",
				Help: "Total session status transitions by resulting status.",
			},
			[]string{"status"},
		),
	}
}

// ObserveLLMRequest is a small convenience wrapper for the common
// start-time/defer pattern call sites would otherwise repeat.
func (r *Recorder) ObserveLLMRequest(vendor, model, status string, start time.Time) {
	if r == nil {
		return
	}
	r.LLMRequestDuration.WithLabelValues(vendor, model).Observe(time.Since(start).Seconds())
	r.LLMRequestCounter.WithLabelValues(vendor, model, status).Inc()
}

// ObserveToolExecution mirrors ObserveLLMRequest for tool dispatches.
func (r *Recorder) ObserveToolExecution(tool, status string, start time.Time) {
	if r == nil {
		return
	}
	r.ToolExecutionDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	r.ToolExecutionCounter.WithLabelValues(tool, status).Inc()
}
