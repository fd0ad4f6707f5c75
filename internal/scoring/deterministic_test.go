package scoring

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serbisyo-bataan/matcher/internal/geo"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

func ptr(v float64) *float64 { return &v }

func plumbingJob() *marketplace.Job {
	return &marketplace.Job{
		ID:             "job-1",
		Description:    "Leaking pipe under the kitchen sink",
		Category:       "Plumbing",
		Location:       &geo.Point{Latitude: 14.68, Longitude: 120.54},
		Urgency:        marketplace.UrgencyHigh,
		SearchRadiusKm: 25,
	}
}

func TestDeterministicWeightsSumTo100(t *testing.T) {
	assert.Equal(t, 100, WeightSkill+WeightExperience+WeightReliability+WeightValue+WeightLocation)
}

func TestDeterministicLocalPlumber(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 0)
	provider := &marketplace.Provider{
		ID:              "p1",
		Category:        "Plumbing",
		Location:        &geo.Point{Latitude: 14.6845, Longitude: 120.54},
		Rating:          marketplace.Rating{Average: 4.8, Count: 40},
		YearsExperience: 15,
	}

	result := scorer.Score(context.Background(), provider, plumbingJob())

	assert.Equal(t, marketplace.SourceDeterministic, result.Source)
	assert.Equal(t, 100, result.ComponentScores.SkillMatch)
	assert.Equal(t, 100, result.ComponentScores.Experience)
	assert.Equal(t, 96, result.ComponentScores.Reliability)
	assert.Equal(t, 50, result.ComponentScores.Value)
	assert.GreaterOrEqual(t, result.ComponentScores.LocationAdvantage, 97)
	assert.GreaterOrEqual(t, result.OverallScore, 80)
	assert.Equal(t, marketplace.RecommendationHighly, result.Recommendation)
	assert.Equal(t, []string{"Strong skill match", "Experienced provider", "High rating", "Local provider"}, result.Reasons)
	assert.Empty(t, result.Concerns)
	require.NotNil(t, result.DistanceKm)
	assert.InDelta(t, 0.5, *result.DistanceKm, 0.01)
}

func TestDeterministicIsDeterministic(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	provider := &marketplace.Provider{
		ID:              "p1",
		Category:        "General Repair",
		Services:        []string{"pipe fitting"},
		Location:        &geo.Point{Latitude: 14.7, Longitude: 120.5},
		Rating:          marketplace.Rating{Average: 3.9},
		YearsExperience: 4,
		CompletionRate:  ptr(88),
		StartingPrice:   ptr(2500),
		Badges:          []string{"verified"},
	}
	job := plumbingJob()
	job.Budget = &marketplace.BudgetRange{Min: 1000, Max: 4000, Currency: "PHP"}

	first, err := json.Marshal(scorer.Score(context.Background(), provider, job))
	require.NoError(t, err)
	second, err := json.Marshal(scorer.Score(context.Background(), provider, job))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestDeterministicSkillOverlap(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	job := &marketplace.Job{Category: "Plumbing", Description: "leaking pipe and a clogged toilet"}

	partial := &marketplace.Provider{ID: "p", Category: "General Repair", Services: []string{"Pipe fitting"}, Specialties: []string{"toilet installation"}}
	none := &marketplace.Provider{ID: "q", Category: "Electrical", Services: []string{"wiring"}}

	assert.Equal(t, 50, scorer.Score(context.Background(), partial, job).ComponentScores.SkillMatch)
	assert.Equal(t, 0, scorer.Score(context.Background(), none, job).ComponentScores.SkillMatch)
}

func TestDeterministicValue(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	job := &marketplace.Job{Budget: &marketplace.BudgetRange{Min: 2000, Max: 4000}}

	tests := []struct {
		name   string
		price  *float64
		expect int
	}{
		{name: "half the midpoint", price: ptr(1500), expect: 100},
		{name: "at the midpoint", price: ptr(3000), expect: 67},
		{name: "twice the midpoint", price: ptr(6000), expect: 0},
		{name: "far above budget", price: ptr(60000), expect: 0},
		{name: "unknown price", price: nil, expect: 50},
	}

	for _, tt := range tests {
		provider := &marketplace.Provider{ID: "p", StartingPrice: tt.price}
		got := scorer.Score(context.Background(), provider, job).ComponentScores.Value
		assert.Equal(t, tt.expect, got, tt.name)
	}

	noBudget := scorer.Score(context.Background(), &marketplace.Provider{ID: "p", StartingPrice: ptr(100)}, &marketplace.Job{})
	assert.Equal(t, 50, noBudget.ComponentScores.Value)
}

func TestDeterministicReliabilityBonusIsCapped(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	provider := &marketplace.Provider{ID: "p", Rating: marketplace.Rating{Average: 5}, Verified: true}

	result := scorer.Score(context.Background(), provider, &marketplace.Job{})
	assert.Equal(t, 100, result.ComponentScores.Reliability)
	assert.Contains(t, result.Reasons, "Verified")

	withCompletion := &marketplace.Provider{ID: "p", Rating: marketplace.Rating{Average: 4}, CompletionRate: ptr(60)}
	assert.Equal(t, 70, scorer.Score(context.Background(), withCompletion, &marketplace.Job{}).ComponentScores.Reliability)
}

func TestDeterministicHighRatingIgnoresVerifiedBonus(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	provider := &marketplace.Provider{ID: "p", Rating: marketplace.Rating{Average: 3.4}, Verified: true}

	result := scorer.Score(context.Background(), provider, &marketplace.Job{})
	assert.Equal(t, 78, result.ComponentScores.Reliability)
	assert.NotContains(t, result.Reasons, "High rating")
	assert.Contains(t, result.Reasons, "Verified")
}

func TestDeterministicUnknownDistanceIsNeutral(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	result := scorer.Score(context.Background(), &marketplace.Provider{ID: "p"}, plumbingJob())

	assert.Equal(t, 50, result.ComponentScores.LocationAdvantage)
	assert.Nil(t, result.DistanceKm)
	assert.Contains(t, result.Concerns, "Limited experience")
}

func TestDeterministicRangeInvariant(t *testing.T) {
	t.Parallel()

	scorer := NewDeterministic(nil, 25)
	rng := rand.New(rand.NewSource(42))
	categories := []string{"Plumbing", "Electrical", "Carpentry", "", "Unknown"}

	for i := 0; i < 500; i++ {
		provider := &marketplace.Provider{
			ID:              "p",
			Category:        categories[rng.Intn(len(categories))],
			Services:        []string{"pipe repair", "wiring", "roof"}[:rng.Intn(4)],
			Location:        &geo.Point{Latitude: 14 + rng.Float64(), Longitude: 120 + rng.Float64()},
			ServiceRadiusKm: rng.Float64() * 60,
			Rating:          marketplace.Rating{Average: rng.Float64()*7 - 1},
			YearsExperience: rng.Intn(40) - 5,
			Verified:        rng.Intn(2) == 0,
			CompletionRate:  ptr(rng.Float64()*150 - 25),
			StartingPrice:   ptr(rng.Float64() * 20000),
		}
		job := &marketplace.Job{
			Category:       categories[rng.Intn(len(categories))],
			Description:    "leak in the pipe and broken outlet",
			Location:       &geo.Point{Latitude: 14 + rng.Float64(), Longitude: 120 + rng.Float64()},
			Budget:         &marketplace.BudgetRange{Min: rng.Float64() * 1000, Max: 1000 + rng.Float64()*9000},
			Urgency:        marketplace.UrgencyEmergency,
			SearchRadiusKm: rng.Float64() * 50,
		}

		result := scorer.Score(context.Background(), provider, job)
		for _, v := range []int{
			result.OverallScore,
			result.SuccessProbability,
			result.ComponentScores.SkillMatch,
			result.ComponentScores.Experience,
			result.ComponentScores.Reliability,
			result.ComponentScores.Value,
			result.ComponentScores.LocationAdvantage,
		} {
			require.GreaterOrEqual(t, v, 0)
			require.LessOrEqual(t, v, 100)
		}
		require.Equal(t, marketplace.RecommendationFor(result.OverallScore), result.Recommendation)
	}
}

type delayedScorer struct{}

func (delayedScorer) Score(_ context.Context, p *marketplace.Provider, _ *marketplace.Job) *marketplace.MatchResult {
	// Later providers finish first.
	time.Sleep(time.Duration(10-p.YearsExperience) * time.Millisecond)
	return &marketplace.MatchResult{ProviderID: p.ID, OverallScore: p.YearsExperience}
}

func TestScoreAllKeepsProviderOrder(t *testing.T) {
	t.Parallel()

	providers := make([]*marketplace.Provider, 0, 10)
	for i := 0; i < 10; i++ {
		providers = append(providers, &marketplace.Provider{ID: string(rune('a' + i)), YearsExperience: i})
	}

	results := ScoreAll(context.Background(), delayedScorer{}, providers, &marketplace.Job{})

	require.Len(t, results, 10)
	for i, result := range results {
		assert.Equal(t, providers[i].ID, result.ProviderID)
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ClampInt(-3))
	assert.Equal(t, 100, ClampInt(180))
	assert.Equal(t, 43, ClampInt(42.5))
}
