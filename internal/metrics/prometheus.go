package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_documents_processed_total",
			Help: "Documents processed by final outcome",
		},
		[]string{"status"},
	)

	Conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_conversions_total",
			Help: "Conversions by content type and status",
		},
		[]string{"content_type", "status"},
	)

	EntitiesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_entities_resolved_total",
			Help: "Resolved entities by outcome",
		},
		[]string{"outcome"},
	)

	RelationshipsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_relationships_written_total",
			Help: "Relationships written to the graph",
		},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 120},
		},
		[]string{"stage"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_llm_tokens_used_total",
			Help: "LLM tokens consumed",
		},
		[]string{"model", "type"},
	)

	ExtractionCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_extraction_cache_total",
			Help: "Extraction cache hits and misses",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(Conversions)
	prometheus.MustRegister(EntitiesResolved)
	prometheus.MustRegister(RelationshipsWritten)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ExtractionCache)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
