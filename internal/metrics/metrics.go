package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

// Match request outcomes.
const (
	OutcomeMatched     = "matched"
	OutcomeNoQualified = "no_qualified"
	OutcomeInvalid     = "invalid"
)

var (
	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_match_requests_total",
			Help: "Total number of match requests by outcome",
		},
		[]string{"outcome"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matcher_scoring_duration_seconds",
			Help:    "Duration of the scoring fan-out for one match request",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProviderScores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_provider_scores_total",
			Help: "Total number of provider scores by source",
		},
		[]string{"source"},
	)

	AIFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_ai_failures_total",
			Help: "Total number of AI assessments replaced by the deterministic score",
		},
		[]string{"reason"},
	)

	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matcher_ai_request_duration_seconds",
			Help:    "Duration of single AI assessment calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)
)

// ObserveScores counts results by the path that produced them.
func ObserveScores(results []*marketplace.MatchResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		ProviderScores.WithLabelValues(string(r.Source)).Inc()
	}
}

// ObserveAIFailure records a fallback. reason is a short error class such as
// "parse" or "transport".
func ObserveAIFailure(reason string) {
	AIFailures.WithLabelValues(reason).Inc()
}

func ObserveAIRequest(started time.Time) {
	AIRequestDuration.Observe(time.Since(started).Seconds())
}

// ContextReason maps context errors to a label, or "" for anything else.
func ContextReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return ""
	}
}
