package mcpspoke

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursebook",
			Name:      "mcp_tool_calls_total",
			Help:      "Total MCP tool calls served",
		},
		[]string{"tool", "status"},
	)

	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coursebook",
			Name:      "mcp_tool_duration_seconds",
			Help:      "Duration of MCP tool calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)
