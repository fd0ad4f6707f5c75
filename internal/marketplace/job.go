package marketplace

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/serbisyo-bataan/matcher/internal/geo"
)

type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// BudgetRange is the client's stated budget for a job.
type BudgetRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency,omitempty"`
}

// Midpoint returns the middle of the range, or 0 when the range is unusable.
func (b *BudgetRange) Midpoint() float64 {
	if b == nil || b.Max <= 0 || b.Min < 0 || b.Max < b.Min {
		return 0
	}
	return (b.Min + b.Max) / 2
}

// Job is the job request being matched. It is treated as immutable once
// matching starts.
type Job struct {
	ID              string       `json:"id,omitempty"`
	Description     string       `json:"description,omitempty"`
	Category        string       `json:"category,omitempty"`
	Location        *geo.Point   `json:"location,omitempty"`
	Municipality    string       `json:"municipality,omitempty"`
	Budget          *BudgetRange `json:"budgetRange,omitempty"`
	Urgency         Urgency      `json:"urgency,omitempty"`
	ComplexityScore int          `json:"complexityScore,omitempty"`
	SearchRadiusKm  float64      `json:"searchRadiusKm,omitempty"`
}

// Validate checks the parts of the job the matching engine relies on.
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("job is required")
	}
	if j.Location != nil {
		if err := j.Location.Validate(); err != nil {
			return fmt.Errorf("job location: %w", err)
		}
	}
	switch j.Urgency {
	case "", UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
	default:
		return fmt.Errorf("unknown urgency %q", j.Urgency)
	}
	if j.ComplexityScore < 0 || j.ComplexityScore > 10 {
		return fmt.Errorf("complexity score %d is outside 1..10", j.ComplexityScore)
	}
	return nil
}

// Normalize fills in defaults for optional fields. A missing id is replaced
// by a random UUID.
func (j *Job) Normalize(defaultRadiusKm float64, defaultComplexity int) {
	if strings.TrimSpace(j.ID) == "" {
		j.ID = uuid.NewString()
	}
	j.Category = strings.TrimSpace(j.Category)
	if j.Urgency == "" {
		j.Urgency = UrgencyMedium
	}
	if j.SearchRadiusKm <= 0 {
		j.SearchRadiusKm = defaultRadiusKm
	}
	if j.ComplexityScore == 0 && defaultComplexity > 0 {
		j.ComplexityScore = defaultComplexity
	}
}
