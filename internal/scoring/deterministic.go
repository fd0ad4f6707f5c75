package scoring

import (
	"context"
	"math"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/geo"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

// Component weights in percent. They must add up to 100.
const (
	WeightSkill       = 40
	WeightExperience  = 20
	WeightReliability = 10
	WeightValue       = 10
	WeightLocation    = 20

	DefaultSearchRadiusKm = 25.0

	neutralScore     = 50.0
	reasonThreshold  = 75
	concernThreshold = 40
	verifiedBonus    = 10.0
	fullExperience   = 10.0
)

// Deterministic is the formula-based scorer. It is pure: the same provider and
// job always produce the same result.
type Deterministic struct {
	catalog         *catalog.Catalog
	defaultRadiusKm float64
}

func NewDeterministic(c *catalog.Catalog, defaultRadiusKm float64) *Deterministic {
	if c == nil {
		c = catalog.Default()
	}
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultSearchRadiusKm
	}
	return &Deterministic{catalog: c, defaultRadiusKm: defaultRadiusKm}
}

func (d *Deterministic) Score(_ context.Context, provider *marketplace.Provider, job *marketplace.Job) *marketplace.MatchResult {
	distance := d.distance(provider, job)

	skill := d.skillMatch(provider, job)
	experience := experienceScore(provider)
	rating := ratingScore(provider)
	reliability := reliabilityScore(provider)
	value := valueScore(provider, job)
	location := d.locationAdvantage(provider, job, distance)

	blend := 0.5*experience + 0.5*rating
	total := (WeightSkill*skill +
		WeightExperience*blend +
		WeightReliability*reliability +
		WeightValue*value +
		WeightLocation*location) / 100

	components := marketplace.ComponentScores{
		SkillMatch:        ClampInt(skill),
		Experience:        ClampInt(experience),
		Reliability:       ClampInt(reliability),
		Value:             ClampInt(value),
		LocationAdvantage: ClampInt(location),
	}
	overall := ClampInt(total)

	result := &marketplace.MatchResult{
		ProviderID:         provider.ID,
		BusinessName:       provider.BusinessName,
		Municipality:       provider.Municipality,
		OverallScore:       overall,
		ComponentScores:    components,
		Reasons:            reasons(components, provider),
		Concerns:           concerns(components),
		Recommendation:     marketplace.RecommendationFor(overall),
		Source:             marketplace.SourceDeterministic,
		SuccessProbability: successProbability(overall, components, job),
	}
	if distance >= 0 {
		km := math.Round(distance*100) / 100
		result.DistanceKm = &km
	}
	return result
}

// JobKeywords exposes the service keywords the scorer derives for a job.
func (d *Deterministic) JobKeywords(job *marketplace.Job) []string {
	return d.catalog.JobKeywords(job.Category, job.Description)
}

func (d *Deterministic) Catalog() *catalog.Catalog {
	return d.catalog
}

// distance returns -1 when either side has no usable location.
func (d *Deterministic) distance(provider *marketplace.Provider, job *marketplace.Job) float64 {
	if provider.Location == nil || job.Location == nil {
		return -1
	}
	km, err := geo.DistanceKm(*job.Location, *provider.Location)
	if err != nil {
		return -1
	}
	return km
}

// MaxRadiusKm is the broader of the job's search radius and the provider's service radius.
func MaxRadiusKm(provider *marketplace.Provider, job *marketplace.Job, defaultRadiusKm float64) float64 {
	radius := job.SearchRadiusKm
	if radius <= 0 {
		radius = defaultRadiusKm
	}
	return math.Max(radius, provider.ServiceRadiusKm)
}

func (d *Deterministic) skillMatch(provider *marketplace.Provider, job *marketplace.Job) float64 {
	if catalog.SameName(provider.Category, job.Category) {
		return 100
	}

	keywords := d.JobKeywords(job)
	if len(keywords) == 0 {
		return 0
	}
	matched := catalog.Overlap(keywords, provider.Keywords())
	return 100 * float64(len(matched)) / float64(len(keywords))
}

func (d *Deterministic) locationAdvantage(provider *marketplace.Provider, job *marketplace.Job, distance float64) float64 {
	if distance < 0 {
		return neutralScore
	}
	radius := MaxRadiusKm(provider, job, d.defaultRadiusKm)
	if radius <= 0 {
		return 0
	}
	return Clamp(100 * (1 - distance/radius))
}

func experienceScore(provider *marketplace.Provider) float64 {
	years := math.Max(float64(provider.YearsExperience), 0)
	return math.Min(years/fullExperience, 1) * 100
}

func ratingScore(provider *marketplace.Provider) float64 {
	return Clamp(provider.Rating.Average / 5 * 100)
}

func reliabilityScore(provider *marketplace.Provider) float64 {
	score := ratingScore(provider)
	if provider.CompletionRate != nil && !math.IsNaN(*provider.CompletionRate) {
		score = 0.5*score + 0.5*Clamp(*provider.CompletionRate)
	}
	if provider.IsVerified() {
		score += verifiedBonus
	}
	return Clamp(score)
}

// valueScore is 100 at half the budget midpoint, 67 at the midpoint and 0 at twice the midpoint.
func valueScore(provider *marketplace.Provider, job *marketplace.Job) float64 {
	midpoint := job.Budget.Midpoint()
	if provider.StartingPrice == nil || *provider.StartingPrice <= 0 || midpoint <= 0 {
		return neutralScore
	}
	ratio := *provider.StartingPrice / midpoint
	return Clamp(100 * (2 - ratio) / 1.5)
}

// successProbability leans on proximity for urgent jobs and on reliability otherwise.
func successProbability(overall int, c marketplace.ComponentScores, job *marketplace.Job) int {
	switch job.Urgency {
	case marketplace.UrgencyHigh, marketplace.UrgencyEmergency:
		return ClampInt(0.8*float64(overall) + 0.2*float64(c.LocationAdvantage))
	default:
		return ClampInt(0.9*float64(overall) + 0.1*float64(c.Reliability))
	}
}

func reasons(c marketplace.ComponentScores, provider *marketplace.Provider) []string {
	out := make([]string, 0, 6)
	if c.SkillMatch > reasonThreshold {
		out = append(out, "Strong skill match")
	}
	if c.Experience > reasonThreshold {
		out = append(out, "Experienced provider")
	}
	if ratingScore(provider) > reasonThreshold {
		out = append(out, "High rating")
	}
	if provider.IsVerified() {
		out = append(out, "Verified")
	}
	if c.Value > reasonThreshold {
		out = append(out, "Good value for the budget")
	}
	if c.LocationAdvantage > reasonThreshold {
		out = append(out, "Local provider")
	}
	return out
}

func concerns(c marketplace.ComponentScores) []string {
	out := make([]string, 0, 5)
	if c.SkillMatch < concernThreshold {
		out = append(out, "Limited skill overlap with the job")
	}
	if c.Experience < concernThreshold {
		out = append(out, "Limited experience")
	}
	if c.Reliability < concernThreshold {
		out = append(out, "Low rating or reliability")
	}
	if c.Value < concernThreshold {
		out = append(out, "Price above budget")
	}
	if c.LocationAdvantage < concernThreshold {
		out = append(out, "Far from the job site")
	}
	return out
}
