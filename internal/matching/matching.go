package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/filtering"
	"github.com/serbisyo-bataan/matcher/internal/logger"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/metrics"
	"github.com/serbisyo-bataan/matcher/internal/scoring"
)

const (
	// QualifyingScore is the lowest overall score kept in a match set.
	QualifyingScore   = 60
	DefaultMaxResults = 10
	DefaultAITimeout  = 15 * time.Second

	NoQualifiedSummary = "no qualified providers"
)

var (
	ErrInvalidJob       = errors.New("invalid job")
	ErrInvalidFilters   = errors.New("invalid filters")
	ErrProviderNotFound = errors.New("provider not found")
)

// Preferences tune the shape of the result.
type Preferences struct {
	MaxResults int `json:"maxResults,omitempty" mapstructure:"max-results"`
}

// ProviderSource looks up a single provider by id. It returns
// ErrProviderNotFound when the id is unknown.
type ProviderSource interface {
	Provider(ctx context.Context, id string) (*marketplace.Provider, error)
}

type Options struct {
	MaxResults      int
	AITimeout       time.Duration
	DefaultRadiusKm float64
	Catalog         *catalog.Catalog
	Logger          *zap.Logger
}

// Orchestrator runs the filter, score, rank and summarise pipeline.
type Orchestrator struct {
	scorer          scoring.Scorer
	source          ProviderSource
	catalog         *catalog.Catalog
	logger          *zap.Logger
	maxResults      int
	aiTimeout       time.Duration
	defaultRadiusKm float64
}

func New(scorer scoring.Scorer, source ProviderSource, opts Options) *Orchestrator {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if scorer == nil {
		scorer = scoring.NewDeterministic(opts.Catalog, opts.DefaultRadiusKm)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = DefaultAITimeout
	}
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = scoring.DefaultSearchRadiusKm
	}

	return &Orchestrator{
		scorer:          scorer,
		source:          source,
		catalog:         opts.Catalog,
		logger:          opts.Logger,
		maxResults:      opts.MaxResults,
		aiTimeout:       opts.AITimeout,
		defaultRadiusKm: opts.DefaultRadiusKm,
	}
}

// FindMatches ranks the providers that fit the job. It only fails on invalid
// input; scoring problems degrade to deterministic scores.
func (o *Orchestrator) FindMatches(ctx context.Context, job *marketplace.Job, providers *marketplace.Providers, filters filtering.Overrides, prefs Preferences) (*marketplace.MatchSet, error) {
	j, err := o.prepare(job, filters.Category)
	if err != nil {
		metrics.MatchRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	log := logger.ForJob(o.logger, j.ID)

	deps := filtering.Deps{Logger: log, Catalog: o.catalog, DefaultRadiusKm: o.defaultRadiusKm}
	candidates, err := filtering.Candidates(ctx, deps, j, providers, filters)
	if err != nil {
		metrics.MatchRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilters, err)
	}

	set := &marketplace.MatchSet{
		JobID:           j.ID,
		Matches:         []*marketplace.MatchResult{},
		TotalCandidates: candidates.Len(),
	}

	if candidates.Len() == 0 {
		set.Insights = noQualified(filters)
		metrics.MatchRequests.WithLabelValues(metrics.OutcomeNoQualified).Inc()
		log.Info("no candidates for job")
		return set, nil
	}

	scoreCtx, cancel := context.WithTimeout(ctx, o.aiTimeout)
	defer cancel()

	start := time.Now()
	results := scoring.ScoreAll(scoreCtx, o.scorer, candidates.Items, j)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	metrics.ObserveScores(results)

	qualified := rank(results, candidates.Items)
	set.QualifiedCount = len(qualified)
	set.Insights = o.insights(j, qualified, filters)

	limit := o.maxResults
	if prefs.MaxResults > 0 {
		limit = prefs.MaxResults
	}
	if len(qualified) > limit {
		qualified = qualified[:limit]
	}
	set.Matches = qualified

	outcome := metrics.OutcomeMatched
	if set.QualifiedCount == 0 {
		outcome = metrics.OutcomeNoQualified
	}
	metrics.MatchRequests.WithLabelValues(outcome).Inc()

	log.Info("matching finished",
		zap.Int("candidates", set.TotalCandidates),
		zap.Int("qualified", set.QualifiedCount),
		zap.Int("ai_scored", countSource(results, marketplace.SourceAI)),
		zap.Int("returned", set.Len()),
		zap.Duration("scoring_duration", time.Since(start)),
	)

	return set, nil
}

// ScoreSingleProvider scores one provider without filtering or ranking.
func (o *Orchestrator) ScoreSingleProvider(ctx context.Context, providerID string, job *marketplace.Job) (*marketplace.MatchResult, error) {
	j, err := o.prepare(job, "")
	if err != nil {
		return nil, err
	}

	providerID = strings.TrimSpace(providerID)
	if providerID == "" || o.source == nil {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, providerID)
	}

	provider, err := o.source.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, providerID)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, o.aiTimeout)
	defer cancel()

	result := o.scorer.Score(scoreCtx, provider, j)
	metrics.ObserveScores([]*marketplace.MatchResult{result})
	return result, nil
}

// prepare validates the job and returns a normalized copy so the caller's
// value is never touched. A category override replaces the job's category so
// filtering and scoring agree on it.
func (o *Orchestrator) prepare(job *marketplace.Job, categoryOverride string) (*marketplace.Job, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", ErrInvalidJob)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	j := *job
	if override := strings.TrimSpace(categoryOverride); override != "" {
		j.Category = override
	}

	// Jobs without a category take the default complexity of the one their
	// description points at.
	name := j.Category
	if strings.TrimSpace(name) == "" {
		name = o.catalog.InferCategory(j.Description)
	}
	complexity := 0
	if category, ok := o.catalog.Lookup(name); ok {
		complexity = category.DefaultComplexity
	}
	j.Normalize(o.defaultRadiusKm, complexity)
	return &j, nil
}

type ranked struct {
	result *marketplace.MatchResult
	rating float64
	years  int
}

// rank drops unqualified results and orders the rest by score, then rating,
// then experience. Remaining ties keep input order.
func rank(results []*marketplace.MatchResult, providers []*marketplace.Provider) []*marketplace.MatchResult {
	entries := make([]ranked, 0, len(results))
	for i, result := range results {
		if result == nil || result.OverallScore < QualifyingScore {
			continue
		}
		entries = append(entries, ranked{
			result: result,
			rating: providers[i].Rating.Average,
			years:  providers[i].YearsExperience,
		})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		x, y := entries[a], entries[b]
		if x.result.OverallScore != y.result.OverallScore {
			return x.result.OverallScore > y.result.OverallScore
		}
		if x.rating != y.rating {
			return x.rating > y.rating
		}
		return x.years > y.years
	})

	out := make([]*marketplace.MatchResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.result)
	}
	return out
}

func (o *Orchestrator) insights(job *marketplace.Job, qualified []*marketplace.MatchResult, filters filtering.Overrides) marketplace.Insights {
	if len(qualified) == 0 {
		return noQualified(filters)
	}

	total := 0
	for _, match := range qualified {
		total += match.OverallScore
	}
	average := math.Round(float64(total)/float64(len(qualified))*10) / 10

	health := MarketHealth(len(qualified))

	what := "providers"
	if job.Category != "" {
		what = job.Category + " providers"
	}
	top := qualified[0]
	name := top.BusinessName
	if name == "" {
		name = top.ProviderID
	}

	summary := fmt.Sprintf("Found %d qualified %s (%s availability). Top match %s scored %d.",
		len(qualified), what, health, name, top.OverallScore)

	var suggestions []string
	if health == marketplace.MarketHealthLimited {
		suggestions = widenSuggestions(filters)
	}

	return marketplace.Insights{
		AverageScore: average,
		MarketHealth: health,
		Summary:      summary,
		Suggestions:  suggestions,
	}
}

// MarketHealth grades how many qualified providers a job attracted.
func MarketHealth(qualified int) marketplace.MarketHealth {
	switch {
	case qualified >= 5:
		return marketplace.MarketHealthExcellent
	case qualified >= 3:
		return marketplace.MarketHealthGood
	default:
		return marketplace.MarketHealthLimited
	}
}

func noQualified(filters filtering.Overrides) marketplace.Insights {
	return marketplace.Insights{
		AverageScore: 0,
		MarketHealth: marketplace.MarketHealthLimited,
		Summary:      NoQualifiedSummary,
		Suggestions:  widenSuggestions(filters),
	}
}

func widenSuggestions(filters filtering.Overrides) []string {
	suggestions := []string{"Increase the search radius"}
	if filters.VerifiedOnly {
		suggestions = append(suggestions, "Include providers that are not yet verified")
	}
	if filters.MinRating != nil {
		suggestions = append(suggestions, "Lower the minimum rating")
	}
	if strings.TrimSpace(filters.Municipality) != "" {
		suggestions = append(suggestions, "Search outside "+strings.TrimSpace(filters.Municipality))
	}
	if strings.TrimSpace(filters.Category) != "" {
		suggestions = append(suggestions, "Try a broader service category")
	}
	return append(suggestions, "Add more detail to the job description")
}

func countSource(results []*marketplace.MatchResult, source marketplace.Source) int {
	n := 0
	for _, r := range results {
		if r != nil && r.Source == source {
			n++
		}
	}
	return n
}
