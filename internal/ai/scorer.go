package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/logger"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/metrics"
	"github.com/serbisyo-bataan/matcher/internal/scoring"
	"github.com/serbisyo-bataan/matcher/internal/utils"
)

const defaultMaxLogLength = 200

// Scorer asks the configured generator for an assessment and falls back to
// the deterministic scorer on any failure. It never returns an error.
type Scorer struct {
	handle    *Handle
	fallback  *scoring.Deterministic
	provider  string
	logger    *zap.Logger
	maxLogLen int
}

// NewScorer builds a scorer. providerName only labels log lines.
func NewScorer(handle *Handle, fallback *scoring.Deterministic, providerName string, logger *zap.Logger, maxLogLength int) *Scorer {
	if fallback == nil {
		fallback = scoring.NewDeterministic(nil, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		handle:    handle,
		fallback:  fallback,
		provider:  providerName,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Configured reports whether a generator is currently installed.
func (s *Scorer) Configured() bool {
	return s.handle.Load() != nil
}

func (s *Scorer) Fallback() *scoring.Deterministic {
	return s.fallback
}

func (s *Scorer) Score(ctx context.Context, provider *marketplace.Provider, job *marketplace.Job) *marketplace.MatchResult {
	baseline := s.fallback.Score(ctx, provider, job)

	generator := s.handle.Load()
	if generator == nil {
		return baseline
	}

	log := logger.ForAssessment(s.logger, s.provider, generator.Model(), job.ID, provider.ID)

	result, err := s.assess(ctx, generator, provider, job, baseline, log)
	if err != nil {
		reason := failureReason(err)
		metrics.ObserveAIFailure(reason)
		log.Warn("ai scoring failed, using deterministic score",
			zap.Error(err),
			zap.String("reason", reason),
			zap.Int("fallback_score", baseline.OverallScore),
		)
		return baseline
	}
	return result
}

func failureReason(err error) string {
	if reason := metrics.ContextReason(err); reason != "" {
		return reason
	}
	switch {
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "transport"
	}
}

// ScoreAll scores every provider concurrently, preserving input order.
func (s *Scorer) ScoreAll(ctx context.Context, providers []*marketplace.Provider, job *marketplace.Job) []*marketplace.MatchResult {
	return scoring.ScoreAll(ctx, s, providers, job)
}

func (s *Scorer) assess(ctx context.Context, generator Generator, provider *marketplace.Provider, job *marketplace.Job, baseline *marketplace.MatchResult, log *zap.Logger) (*marketplace.MatchResult, error) {
	pc := promptContext{
		DistanceKm:      baseline.DistanceKm,
		JobKeywords:     s.fallback.JobKeywords(job),
		BaselineScore:   baseline.OverallScore,
		BaselineReasons: baseline.Reasons,
	}
	if category, ok := s.fallback.Catalog().Lookup(job.Category); ok {
		pc.Category = &category
	}

	prompt, err := buildPrompt(provider, job, pc)
	if err != nil {
		return nil, err
	}

	log.Debug("ai generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	started := time.Now()
	raw, err := generate(ctx, generator, prompt)
	metrics.ObserveAIRequest(started)
	if err != nil {
		return nil, err
	}

	log.Debug("ai generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	a, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	return merge(a, baseline), nil
}

// generate runs the call in its own goroutine so a generator that ignores
// ctx cannot hold the caller past its deadline.
func generate(ctx context.Context, generator Generator, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := generator.GenerateContent(ctx, prompt)
		done <- reply{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, ErrUnavailable) {
				return "", r.err
			}
			return "", fmt.Errorf("%w: %w", ErrTransport, r.err)
		}
		return r.text, nil
	}
}

// merge turns a parsed assessment into a result. Components the model left
// out are taken from the baseline; the recommendation always follows the score.
func merge(a *assessment, baseline *marketplace.MatchResult) *marketplace.MatchResult {
	overall := scoring.ClampInt(a.OverallScore)
	components := marketplace.ComponentScores{
		SkillMatch:        component(a.SkillMatch, baseline.ComponentScores.SkillMatch),
		Experience:        component(a.Experience, baseline.ComponentScores.Experience),
		Reliability:       component(a.Reliability, baseline.ComponentScores.Reliability),
		Value:             component(a.Value, baseline.ComponentScores.Value),
		LocationAdvantage: component(a.LocationAdvantage, baseline.ComponentScores.LocationAdvantage),
	}

	success := baseline.SuccessProbability
	if !math.IsNaN(a.SuccessProbability) {
		success = scoring.ClampInt(a.SuccessProbability)
	}

	reasons := a.Strengths
	if len(reasons) == 0 {
		reasons = baseline.Reasons
	}
	concerns := a.Concerns
	if len(a.Strengths) == 0 && len(concerns) == 0 {
		concerns = baseline.Concerns
	}

	return &marketplace.MatchResult{
		ProviderID:         baseline.ProviderID,
		BusinessName:       baseline.BusinessName,
		Municipality:       baseline.Municipality,
		OverallScore:       overall,
		ComponentScores:    components,
		Reasons:            reasons,
		Concerns:           concerns,
		Recommendation:     marketplace.RecommendationFor(overall),
		Source:             marketplace.SourceAI,
		MatchReason:        a.MatchReason,
		SuccessProbability: success,
		DistanceKm:         baseline.DistanceKm,
	}
}

func component(v float64, fallback int) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return scoring.ClampInt(v)
}
