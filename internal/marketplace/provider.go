package marketplace

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/serbisyo-bataan/matcher/internal/geo"
)

const (
	BadgeVerified = "verified"
)

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Provider is a read-only snapshot of a service provider document.
type Provider struct {
	ID              string     `json:"id"`
	BusinessName    string     `json:"businessName,omitempty"`
	Category        string     `json:"category,omitempty"`
	Services        []string   `json:"services,omitempty"`
	Specialties     []string   `json:"specialties,omitempty"`
	Location        *geo.Point `json:"location,omitempty"`
	Municipality    string     `json:"municipality,omitempty"`
	ServiceRadiusKm float64    `json:"serviceRadiusKm,omitempty"`
	Rating          Rating     `json:"rating"`
	YearsExperience int        `json:"yearsExperience,omitempty"`
	Verified        bool       `json:"verified,omitempty"`
	Badges          []string   `json:"badges,omitempty"`
	// CompletionRate is a percentage; nil means unknown.
	CompletionRate *float64 `json:"completionRate,omitempty"`
	// StartingPrice is the provider's typical price for a job, in the job's currency.
	StartingPrice *float64 `json:"startingPrice,omitempty"`
}

// IsVerified reports whether the provider is verified either by flag or badge.
func (p *Provider) IsVerified() bool {
	if p.Verified {
		return true
	}
	for _, badge := range p.Badges {
		if strings.EqualFold(strings.TrimSpace(badge), BadgeVerified) {
			return true
		}
	}
	return false
}

// Keywords returns the provider's services and specialties.
func (p *Provider) Keywords() []string {
	out := make([]string, 0, len(p.Services)+len(p.Specialties))
	out = append(out, p.Services...)
	return append(out, p.Specialties...)
}

type Providers struct {
	Items []*Provider `json:"items"`
}

func (p *Providers) Len() int {
	return len(p.Items)
}

func (p *Providers) FindByID(id string) *Provider {
	for _, provider := range p.Items {
		if provider.ID == id {
			return provider
		}
	}
	return nil
}

// IDs returns provider ids in list order.
func (p *Providers) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, provider := range p.Items {
		ids = append(ids, provider.ID)
	}
	return ids
}

// Keep retains providers accepted by keep, preserving their order, and
// returns the ids of the dropped ones.
func (p *Providers) Keep(keep func(*Provider) bool) []string {
	var dropped []string
	kept := make([]*Provider, 0, len(p.Items))
	for _, provider := range p.Items {
		if keep(provider) {
			kept = append(kept, provider)
			continue
		}
		dropped = append(dropped, provider.ID)
	}
	p.Items = kept
	return dropped
}

// Clone returns a shallow copy of the list so filtering does not touch the caller's slice.
func (p *Providers) Clone() *Providers {
	items := make([]*Provider, len(p.Items))
	copy(items, p.Items)
	return &Providers{Items: items}
}

// DecodeProviders converts raw documents from the store into providers.
func DecodeProviders(items []any) (*Providers, error) {
	var providers []*Provider
	if err := decode(items, &providers); err != nil {
		return nil, fmt.Errorf("decode providers: %w", err)
	}

	for idx, provider := range providers {
		if provider == nil || strings.TrimSpace(provider.ID) == "" {
			return nil, fmt.Errorf("provider at index %d has no id", idx)
		}
	}

	return &Providers{Items: providers}, nil
}

// DecodeJob converts a raw job document into a Job.
func DecodeJob(raw map[string]any) (*Job, error) {
	var job Job
	if err := decode(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// GetProvidersFromFile reads a JSON export holding either an array of
// provider documents or an {"items": [...]} envelope.
func GetProvidersFromFile(path string) (*Providers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	switch typed := raw.(type) {
	case []any:
		return DecodeProviders(typed)
	case map[string]any:
		items, ok := typed["items"].([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected an array or an object with items", path)
		}
		return DecodeProviders(items)
	default:
		return nil, fmt.Errorf("%s: expected an array or an object with items", path)
	}
}

// GetJobFromFile reads a single job document.
func GetJobFromFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return DecodeJob(raw)
}

func decode(input, output any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
