package marketplace

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

type Recommendation string

const (
	RecommendationHighly      Recommendation = "highly_recommended"
	RecommendationRecommended Recommendation = "recommended"
	RecommendationConsider    Recommendation = "consider"
	RecommendationNot         Recommendation = "not_recommended"
)

// RecommendationFor maps an overall score to its recommendation label. It is
// the only place a label is ever derived.
func RecommendationFor(score int) Recommendation {
	switch {
	case score >= 80:
		return RecommendationHighly
	case score >= 60:
		return RecommendationRecommended
	case score >= 40:
		return RecommendationConsider
	default:
		return RecommendationNot
	}
}

type Source string

const (
	SourceAI            Source = "ai"
	SourceDeterministic Source = "deterministic_fallback"
)

type MarketHealth string

const (
	MarketHealthLimited   MarketHealth = "limited"
	MarketHealthGood      MarketHealth = "good"
	MarketHealthExcellent MarketHealth = "excellent"
)

type ComponentScores struct {
	SkillMatch        int `json:"skillMatch"`
	Experience        int `json:"experience"`
	Reliability       int `json:"reliability"`
	Value             int `json:"value"`
	LocationAdvantage int `json:"locationAdvantage"`
}

// MatchResult is the score of one provider against one job.
type MatchResult struct {
	ProviderID         string          `json:"providerId"`
	BusinessName       string          `json:"businessName,omitempty"`
	Municipality       string          `json:"municipality,omitempty"`
	OverallScore       int             `json:"overallScore"`
	ComponentScores    ComponentScores `json:"componentScores"`
	Reasons            []string        `json:"reasons"`
	Concerns           []string        `json:"concerns"`
	Recommendation     Recommendation  `json:"recommendation"`
	Source             Source          `json:"source"`
	MatchReason        string          `json:"matchReason,omitempty"`
	SuccessProbability int             `json:"successProbability"`
	DistanceKm         *float64        `json:"distanceKm,omitempty"`
}

type Insights struct {
	AverageScore float64      `json:"averageScore"`
	MarketHealth MarketHealth `json:"marketHealth"`
	Summary      string       `json:"summary"`
	Suggestions  []string     `json:"suggestions,omitempty"`
}

// MatchSet is the ranked outcome of matching one job.
type MatchSet struct {
	JobID           string         `json:"jobId"`
	Matches         []*MatchResult `json:"matches"`
	TotalCandidates int            `json:"totalCandidates"`
	QualifiedCount  int            `json:"qualifiedCount"`
	Insights        Insights       `json:"insights"`
}

func (m *MatchSet) Len() int {
	return len(m.Matches)
}

func (m *MatchSet) FindByProviderID(id string) *MatchResult {
	for _, match := range m.Matches {
		if match.ProviderID == id {
			return match
		}
	}
	return nil
}

func (m *MatchSet) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByMunicipality groups matches by the provider's municipality.
func (m *MatchSet) ReportByMunicipality() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, match := range m.Matches {
		key := match.Municipality
		if key == "" {
			key = "unknown"
		}
		entry := map[string]string{
			"provider":       fmt.Sprintf("%s (%s)", match.BusinessName, match.ProviderID),
			"score":          strconv.Itoa(match.OverallScore),
			"recommendation": string(match.Recommendation),
			"source":         string(match.Source),
		}
		if match.DistanceKm != nil {
			entry["distance_km"] = strconv.FormatFloat(*match.DistanceKm, 'f', 1, 64)
		}
		report[key] = append(report[key], entry)
	}

	for key := range report {
		sort.SliceStable(report[key], func(i, j int) bool {
			return report[key][i]["provider"] < report[key][j]["provider"]
		})
	}
	return report
}
