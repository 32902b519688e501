package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandidatesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_candidates_scored_total",
		Help: "The total number of candidates scored",
	})

	CandidatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_candidates_dropped_total",
		Help: "Total number of dropped candidates by reason",
	}, []string{"reason"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digest_llm_request_duration_seconds",
		Help:    "Duration of LLM requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	ComposeStrategy = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_compose_strategy_total",
		Help: "Entries composed per strategy",
	}, []string{"strategy"})

	SelectionMode = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_selection_mode_total",
		Help: "Phase 1 selections by mode (llm or quota fallback)",
	}, []string{"mode"})

	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_gate_decisions_total",
		Help: "Quality gate decisions",
	}, []string{"decision"})

	GateReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_gate_reasons_total",
		Help: "Quality gate reason codes",
	}, []string{"reason"})

	DigestEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "digest_entries",
		Help: "Number of entries in the most recent digest",
	})

	DigestTotalScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "digest_total_score",
		Help: "Quality total score of the most recent digest",
	})

	RecentDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_recent_duplicates_total",
		Help: "Cross-day duplicate handling by action (filtered, tail_fallback, replaced, dropped)",
	}, []string{"action"})
)
