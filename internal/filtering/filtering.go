package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

// Filter represents a single filtering step applied to providers.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger          *zap.Logger
	Catalog         *catalog.Catalog
	DefaultRadiusKm float64
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Overrides are the optional per-request filters.
type Overrides struct {
	Municipality string   `json:"municipality,omitempty" mapstructure:"municipality"`
	Category     string   `json:"category,omitempty" mapstructure:"category"`
	VerifiedOnly bool     `json:"verifiedOnly,omitempty" mapstructure:"verified-only"`
	MinRating    *float64 `json:"minRating,omitempty" mapstructure:"min-rating"`
	// ExcludeIDs lists providers the client does not want to see again.
	ExcludeIDs []string `json:"excludeIds,omitempty" mapstructure:"exclude-ids"`
}

// Config contains the job and overrides consumed by the filters.
type Config struct {
	Job       *marketplace.Job
	Overrides Overrides
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns a fresh set of the candidate filters in evaluation order.
func Default() []Filter {
	return []Filter{
		NewExcluded(),
		NewCategory(),
		NewLocation(),
		NewVerified(),
		NewMinRating(),
		NewMunicipality(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the surviving providers.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, p *marketplace.Providers) (*marketplace.Providers, error) {
	if cfg == nil || cfg.Job == nil {
		return nil, fmt.Errorf("a job is required for filtering")
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		p = next
	}

	return p, nil
}

// Candidates narrows providers to those eligible for the job. The input list is
// never modified and the original order is kept.
func Candidates(ctx context.Context, deps Deps, job *marketplace.Job, providers *marketplace.Providers, overrides Overrides) (*marketplace.Providers, error) {
	if providers == nil {
		providers = &marketplace.Providers{}
	}
	cfg := &Config{Job: job, Overrides: overrides}
	return Run(ctx, cfg, deps, Default(), providers.Clone())
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle holds the enable/disable state shared by every step.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = strings.TrimSpace(reason)
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func (t *toggle) status(name string, details map[string]string) Status {
	return Status{Name: name, Enabled: !t.disabled, Reason: t.reason, Details: details}
}

func apply(deps Deps, name string, p *marketplace.Providers, keep func(*marketplace.Provider) bool) (*marketplace.Providers, Step) {
	initial := p.Len()
	dropped := p.Keep(keep)
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("excluding providers",
			zap.String("filter", name),
			zap.Strings("excluded_providers", dropped),
			zap.Int("providers_left", p.Len()),
		)
	}
	return p, Step{Initial: initial, Dropped: len(dropped), Left: p.Len()}
}
