// Package observability provides Prometheus metrics for the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects engine-level counters and latencies.
//
// Tracked:
//   - Turns by finish reason
//   - Adapter call latency
//   - Tool execution counts and latency
//   - Compactions and token savings
type Metrics struct {
	// TurnCounter counts completed turns.
	// Labels: finish (complete|max_turns|continued)
	TurnCounter *prometheus.CounterVec

	// AdapterRequestDuration measures adapter streaming call latency.
	// Labels: adapter, model
	AdapterRequestDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool, status (success|error|blocked)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool
	ToolExecutionDuration *prometheus.HistogramVec

	// CompactionCounter counts history compactions.
	CompactionCounter prometheus.Counter

	// CompactionTokensSaved sums tokens dropped by compaction.
	CompactionTokensSaved prometheus.Counter
}

// NewMetrics registers the engine metrics on a registerer. Pass nil to
// use the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_turns_total",
			Help: "Completed agent turns by finish reason.",
		}, []string{"finish"}),

		AdapterRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_adapter_request_seconds",
			Help:    "Adapter streaming call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"adapter", "model"}),

		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_tool_executions_total",
			Help: "Tool invocations by outcome.",
		}, []string{"tool", "status"}),

		ToolExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_tool_execution_seconds",
			Help:    "Tool execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),

		CompactionCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_compactions_total",
			Help: "History compactions performed.",
		}),

		CompactionTokensSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_compaction_tokens_saved_total",
			Help: "Estimated tokens dropped by compaction.",
		}),
	}
}
