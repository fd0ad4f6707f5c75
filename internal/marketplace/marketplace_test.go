package marketplace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendationForBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score  int
		expect Recommendation
	}{
		{score: 0, expect: RecommendationNot},
		{score: 39, expect: RecommendationNot},
		{score: 40, expect: RecommendationConsider},
		{score: 59, expect: RecommendationConsider},
		{score: 60, expect: RecommendationRecommended},
		{score: 79, expect: RecommendationRecommended},
		{score: 80, expect: RecommendationHighly},
		{score: 100, expect: RecommendationHighly},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, RecommendationFor(tt.score), "score %d", tt.score)
	}
}

func TestDecodeProvidersFromDocuments(t *testing.T) {
	t.Parallel()

	items := []any{
		map[string]any{
			"id":              "p1",
			"businessName":    "Balanga Plumbing Co.",
			"category":        "Plumbing",
			"services":        []any{"pipe repair", "leak detection"},
			"location":        map[string]any{"latitude": 14.68, "longitude": 120.54},
			"serviceRadiusKm": 15.0,
			"rating":          map[string]any{"average": "4.8", "count": 21.0},
			"yearsExperience": 15.0,
			"verified":        true,
			"completionRate":  97.5,
		},
	}

	providers, err := DecodeProviders(items)
	require.NoError(t, err)
	require.Equal(t, 1, providers.Len())

	p := providers.Items[0]
	assert.Equal(t, "Balanga Plumbing Co.", p.BusinessName)
	assert.Equal(t, []string{"pipe repair", "leak detection"}, p.Services)
	require.NotNil(t, p.Location)
	assert.InDelta(t, 14.68, p.Location.Latitude, 1e-9)
	assert.InDelta(t, 4.8, p.Rating.Average, 1e-9)
	assert.Equal(t, 21, p.Rating.Count)
	assert.Equal(t, 15, p.YearsExperience)
	require.NotNil(t, p.CompletionRate)
	assert.InDelta(t, 97.5, *p.CompletionRate, 1e-9)
	assert.Nil(t, p.StartingPrice)
}

func TestDecodeProvidersRequiresID(t *testing.T) {
	t.Parallel()

	_, err := DecodeProviders([]any{map[string]any{"category": "Plumbing"}})
	assert.Error(t, err)
}

func TestGetProvidersFromFileAcceptsEnvelope(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items":[{"id":"a"},{"id":"b","badges":["verified"]}]}`), 0o600))

	providers, err := GetProvidersFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, providers.IDs())
	assert.False(t, providers.Items[0].IsVerified())
	assert.True(t, providers.Items[1].IsVerified())
}

func TestProvidersKeepPreservesOrder(t *testing.T) {
	t.Parallel()

	providers := &Providers{Items: []*Provider{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}}
	original := providers.Clone()

	dropped := providers.Keep(func(p *Provider) bool { return p.ID != "2" })

	assert.Equal(t, []string{"2"}, dropped)
	assert.Equal(t, []string{"1", "3", "4"}, providers.IDs())
	assert.Equal(t, []string{"1", "2", "3", "4"}, original.IDs())
}

func TestJobNormalizeAndValidate(t *testing.T) {
	t.Parallel()

	job := &Job{Category: "  Plumbing "}
	job.Normalize(25, 5)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "Plumbing", job.Category)
	assert.Equal(t, UrgencyMedium, job.Urgency)
	assert.InDelta(t, 25.0, job.SearchRadiusKm, 1e-9)
	assert.Equal(t, 5, job.ComplexityScore)
	assert.NoError(t, job.Validate())

	job.Urgency = "whenever"
	assert.Error(t, job.Validate())
}

func TestBudgetMidpoint(t *testing.T) {
	t.Parallel()

	var nilBudget *BudgetRange
	assert.Zero(t, nilBudget.Midpoint())
	assert.Zero(t, (&BudgetRange{Min: 5000, Max: 1000}).Midpoint())
	assert.InDelta(t, 3000.0, (&BudgetRange{Min: 1000, Max: 5000}).Midpoint(), 1e-9)
}

func TestReportByMunicipality(t *testing.T) {
	t.Parallel()

	distance := 1.24
	set := &MatchSet{Matches: []*MatchResult{
		{ProviderID: "p2", BusinessName: "Zeta", Municipality: "Balanga", OverallScore: 70, Recommendation: RecommendationRecommended, Source: SourceAI},
		{ProviderID: "p1", BusinessName: "Alpha", Municipality: "Balanga", OverallScore: 90, Recommendation: RecommendationHighly, Source: SourceDeterministic, DistanceKm: &distance},
		{ProviderID: "p3", BusinessName: "Orion Works", OverallScore: 65, Recommendation: RecommendationRecommended},
	}}

	report := set.ReportByMunicipality()

	require.Len(t, report["Balanga"], 2)
	assert.Equal(t, "Alpha (p1)", report["Balanga"][0]["provider"])
	assert.Equal(t, "1.2", report["Balanga"][0]["distance_km"])
	assert.Equal(t, "90", report["Balanga"][0]["score"])
	require.Len(t, report["unknown"], 1)
	assert.Equal(t, "recommended", report["unknown"][0]["recommendation"])
}

func TestExcludedProvidersRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exclude.json")

	excluded, err := GetExcludedProvidersFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, excluded.IDs())

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	set := &MatchSet{Matches: []*MatchResult{{ProviderID: "p1", BusinessName: "Alpha"}, {ProviderID: "p2"}}}
	excluded.Append(set.ToExcluded(now)...)
	excluded.Append(&ExcludedProvider{ID: "p1"}, &ExcludedProvider{ID: "p3"})
	require.NoError(t, excluded.ToFile(path))

	loaded, err := GetExcludedProvidersFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, loaded.IDs())
	assert.Equal(t, "Alpha", loaded.Items[0].BusinessName)
	assert.True(t, loaded.Items[0].ExcludedAt.Equal(now))

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	empty, err := GetExcludedProvidersFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}
