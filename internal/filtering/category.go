package filtering

import (
	"context"
	"strings"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

type categoryFilter struct {
	toggle
	category    string
	description string
}

// NewCategory creates a filter that keeps providers of the job's category, or
// providers whose services cover what the job asks for.
func NewCategory() Filter {
	return &categoryFilter{}
}

func (f *categoryFilter) Name() string { return "category" }

func (f *categoryFilter) Validate(cfg *Config) error {
	f.category = strings.TrimSpace(cfg.Overrides.Category)
	if f.category == "" {
		f.category = strings.TrimSpace(cfg.Job.Category)
	}
	if f.category == "" {
		f.Disable("job has no category")
	}
	f.description = cfg.Job.Description
	return nil
}

func (f *categoryFilter) Apply(_ context.Context, deps Deps, p *marketplace.Providers) (*marketplace.Providers, Step, error) {
	c := deps.Catalog
	if c == nil {
		c = catalog.Default()
	}
	services := jobServices(c, f.category, f.description)

	next, step := apply(deps, f.Name(), p, func(provider *marketplace.Provider) bool {
		if catalog.SameName(provider.Category, f.category) {
			return true
		}
		return len(catalog.Overlap(services, provider.Keywords())) > 0
	})
	return next, step, nil
}

func (f *categoryFilter) Status() Status {
	details := map[string]string{}
	if f.category != "" {
		details["category"] = f.category
	}
	return f.status(f.Name(), details)
}

// jobServices merges the category's catalog keywords with those detected in
// the description.
func jobServices(c *catalog.Catalog, category, description string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(keywords []string) {
		for _, k := range keywords {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	if cat, ok := c.Lookup(category); ok {
		add(cat.Keywords)
	}
	add(c.DetectKeywords(description))
	return out
}
