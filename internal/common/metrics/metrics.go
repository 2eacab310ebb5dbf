package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turns_processed_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "agent_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
	)

	RetrievalQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_retrieval_queries_total",
			Help: "Total number of catalog retrieval queries",
		},
		[]string{"freshness"},
	)

	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "agent_retrieval_duration_seconds",
			Help: "Duration of catalog retrieval in seconds",
		},
	)

	IndexRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_index_rebuilds_total",
			Help: "Total number of vector index rebuilds",
		},
	)

	CatalogItemsSkipped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_catalog_items_skipped",
			Help: "Catalog items skipped during the last index build",
		},
	)

	LeadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_leads_created_total",
			Help: "Total number of leads handed off to the CRM",
		},
	)

	LeadAttemptsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lead_attempts_failed_total",
			Help: "Lead creation attempts that failed, by error code",
		},
		[]string{"error_code"},
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_degraded_responses_total",
			Help: "Responses served in degraded mode, by collaborator",
		},
		[]string{"collaborator"},
	)

	IntentsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_intents_detected_total",
			Help: "Detected intents per turn (multi-membership)",
		},
		[]string{"intent"},
	)
)
