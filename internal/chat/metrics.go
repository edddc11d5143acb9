package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursebook",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"status"},
	)

	llmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coursebook",
			Name:      "llm_duration_seconds",
			Help:      "Duration of LLM API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursebook",
			Name:      "tool_calls_total",
			Help:      "Total tool executions requested by the model",
		},
		[]string{"tool", "status"}, // unregistered names are counted under tool="unknown"
	)

	toolRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coursebook",
			Name:      "tool_rounds",
			Help:      "Tool rounds used per query",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		},
	)

	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursebook",
			Name:      "queries_total",
			Help:      "Total course questions answered",
		},
		[]string{"status"},
	)
)
