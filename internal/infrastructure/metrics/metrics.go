// Package metrics exposes prometheus collectors for context building and
// exposure processing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// Context tiers by chapter number.
const (
	TierEarly  = "early"
	TierMiddle = "middle"
	TierLate   = "late"
)

// Exposure outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// Recorder implements ports.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	contextBuilds         *prometheus.CounterVec
	contextLength         prometheus.Histogram
	contextTokens         prometheus.Histogram
	exposuresProcessed    *prometheus.CounterVec
	knowledgeEdges        *prometheus.CounterVec
	membershipTransitions *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		contextBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_context_builds_total",
				Help: "Chapter contexts built, partitioned by chapter tier.",
			},
			[]string{"tier"},
		),
		contextLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lore_context_length_chars",
			Help:    "Total characters in built chapter contexts.",
			Buckets: prometheus.ExponentialBuckets(250, 2, 8),
		}),
		contextTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lore_context_tokens",
			Help:    "Estimated prompt tokens of built chapter contexts.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 8),
		}),
		exposuresProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_exposures_processed_total",
				Help: "Identity exposure events processed, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		knowledgeEdges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_knowledge_edges_total",
				Help: "Knowledge edges written by exposures, partitioned by operation.",
			},
			[]string{"op"},
		),
		membershipTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_membership_transitions_total",
				Help: "Membership status transitions caused by exposures, partitioned by target status.",
			},
			[]string{"to"},
		),
	}
}

// Tier names the context tier of a chapter.
func Tier(chapter int) string {
	switch {
	case chapter <= 10:
		return TierEarly
	case chapter <= 50:
		return TierMiddle
	default:
		return TierLate
	}
}

// ObserveContextBuild records a successful context build.
func (r *Recorder) ObserveContextBuild(stats entities.ContextStats) {
	r.contextBuilds.WithLabelValues(Tier(stats.ChapterNumber)).Inc()
	r.contextLength.Observe(float64(stats.TotalLength))
	if stats.EstimatedTokens > 0 {
		r.contextTokens.Observe(float64(stats.EstimatedTokens))
	}
}

// ObserveExposure records the outcome of one exposure event.
func (r *Recorder) ObserveExposure(result entities.ExposureResult) {
	switch {
	case result.Error != "":
		r.exposuresProcessed.WithLabelValues(OutcomeRejected).Inc()
		return
	case result.IdentityUpdated:
		r.exposuresProcessed.WithLabelValues(OutcomeApplied).Inc()
	default:
		r.exposuresProcessed.WithLabelValues(OutcomeNoop).Inc()
	}

	if result.KnowledgeCreatedCount > 0 {
		r.knowledgeEdges.WithLabelValues("created").Add(float64(result.KnowledgeCreatedCount))
	}
	if result.KnowledgeRaisedCount > 0 {
		r.knowledgeEdges.WithLabelValues("raised").Add(float64(result.KnowledgeRaisedCount))
	}
	for _, t := range result.OrganizationsAffected {
		r.membershipTransitions.WithLabelValues(string(t.NewStatus)).Inc()
	}
}

// Gatherer returns the registry backing the recorder.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
