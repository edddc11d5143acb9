package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursebook",
			Name:      "search_queries_total",
			Help:      "Total content searches",
		},
		[]string{"status"}, // "ok", "empty", "unresolved", "error"
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coursebook",
			Name:      "search_duration_seconds",
			Help:      "Duration of content searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	embeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursebook",
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups",
		},
		[]string{"result"},
	)
)
