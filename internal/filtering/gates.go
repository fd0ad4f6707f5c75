package filtering

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

type verifiedFilter struct {
	toggle
}

// NewVerified creates a filter that keeps verified providers when requested.
func NewVerified() Filter {
	return &verifiedFilter{}
}

func (f *verifiedFilter) Name() string { return "verified" }

func (f *verifiedFilter) Validate(cfg *Config) error {
	if !cfg.Overrides.VerifiedOnly {
		f.Disable("verified-only is not set")
	}
	return nil
}

func (f *verifiedFilter) Apply(_ context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error) {
	next, step := apply(deps, f.Name(), p, (*marketplace.Provider).IsVerified)
	return next, step, nil
}

func (f *verifiedFilter) Status() Status {
	return f.status(f.Name(), nil)
}

type minRatingFilter struct {
	toggle
	min float64
}

// NewMinRating creates a filter that drops providers rated below a threshold.
func NewMinRating() Filter {
	return &minRatingFilter{}
}

func (f *minRatingFilter) Name() string { return "min_rating" }

func (f *minRatingFilter) Validate(cfg *Config) error {
	if cfg.Overrides.MinRating == nil {
		f.Disable("min-rating is not set")
		return nil
	}
	f.min = *cfg.Overrides.MinRating
	if math.IsNaN(f.min) || f.min < 0 || f.min > 5 {
		return fmt.Errorf("min rating %v is outside 0..5", f.min)
	}
	return nil
}

func (f *minRatingFilter) Apply(_ context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error) {
	next, step := apply(deps, f.Name(), p, func(provider *marketplace.Provider) bool {
		return provider.Rating.Average >= f.min
	})
	return next, step, nil
}

func (f *minRatingFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"min_rating": strconv.FormatFloat(f.min, 'f', -1, 64)})
}

type municipalityFilter struct {
	toggle
	municipality string
}

// NewMunicipality creates a filter that keeps providers based in one municipality.
func NewMunicipality() Filter {
	return &municipalityFilter{}
}

func (f *municipalityFilter) Name() string { return "municipality" }

func (f *municipalityFilter) Validate(cfg *Config) error {
	f.municipality = strings.TrimSpace(cfg.Overrides.Municipality)
	if f.municipality == "" {
		f.Disable("municipality is not set")
	}
	return nil
}

func (f *municipalityFilter) Apply(_ context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error) {
	next, step := apply(deps, f.Name(), p, func(provider *marketplace.Provider) bool {
		return catalog.SameName(provider.Municipality, f.municipality)
	})
	return next, step, nil
}

func (f *municipalityFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"municipality": f.municipality})
}

type excludedFilter struct {
	toggle
	ids map[string]struct{}
}

// NewExcluded creates a filter that removes providers listed in the exclude list.
func NewExcluded() Filter {
	return &excludedFilter{}
}

func (f *excludedFilter) Name() string { return "excluded" }

func (f *excludedFilter) Validate(cfg *Config) error {
	f.ids = make(map[string]struct{}, len(cfg.Overrides.ExcludeIDs))
	for _, id := range cfg.Overrides.ExcludeIDs {
		if id = strings.TrimSpace(id); id != "" {
			f.ids[id] = struct{}{}
		}
	}
	if len(f.ids) == 0 {
		f.Disable("no providers excluded")
	}
	return nil
}

func (f *excludedFilter) Apply(_ context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error) {
	next, step := apply(deps, f.Name(), p, func(provider *marketplace.Provider) bool {
		_, excluded := f.ids[provider.ID]
		return !excluded
	})
	return next, step, nil
}

func (f *excludedFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"excluded": strconv.Itoa(len(f.ids))})
}
