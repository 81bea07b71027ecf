package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 知识库核心指标
var (
	ChunksIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_chunks_ingested_total",
			Help: "Total number of chunks ingested into knowledge bases",
		},
		[]string{"knowledge_base_id"},
	)

	IngestDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_ingest_degraded_total",
			Help: "Total number of chunks stored with a fallback vector after embedding failure",
		},
		[]string{"knowledge_base_id"},
	)

	SearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_search_total",
			Help: "Total number of knowledge base searches",
		},
		[]string{"knowledge_base_id", "mode"}, // mode: plain, enhanced, cached
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knowledge_search_duration_seconds",
			Help:    "Duration of knowledge base searches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"knowledge_base_id"},
	)
)
