package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/geo"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/scoring"
)

type locationFilter struct {
	toggle
	job *marketplace.Job
}

// NewLocation creates a filter that keeps providers within reach of the job
// site: the broader of the job's search radius and the provider's own service
// radius.
func NewLocation() Filter {
	return &locationFilter{}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Validate(cfg *Config) error {
	f.job = cfg.Job
	if f.job.Location == nil {
		f.Disable("job has no location")
		return nil
	}
	if err := f.job.Location.Validate(); err != nil {
		return fmt.Errorf("job location: %w", err)
	}
	return nil
}

func (f *locationFilter) Apply(_ context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error) {
	origin := *f.job.Location

	next, step := apply(deps, f.Name(), p, func(provider *marketplace.Provider) bool {
		if provider.Location == nil {
			return false
		}

		radius := scoring.MaxRadiusKm(provider, f.job, deps.DefaultRadiusKm)
		ok, err := geo.WithinRadius(origin, *provider.Location, radius)
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.Warn("dropping provider with invalid location",
					zap.String("provider_id", provider.ID),
					zap.Error(err),
				)
			}
			return false
		}
		return ok
	})
	return next, step, nil
}

func (f *locationFilter) Status() Status {
	details := map[string]string{}
	if f.job != nil && f.job.SearchRadiusKm > 0 {
		details["search_radius_km"] = strconv.FormatFloat(f.job.SearchRadiusKm, 'f', -1, 64)
	}
	return f.status(f.Name(), details)
}
