package matching

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

// StaticSource serves providers from an in-memory snapshot that can be
// replaced while requests are running.
type StaticSource struct {
	snapshot atomic.Pointer[marketplace.Providers]
}

func NewStaticSource(providers *marketplace.Providers) *StaticSource {
	s := &StaticSource{}
	s.Replace(providers)
	return s
}

func (s *StaticSource) Replace(providers *marketplace.Providers) {
	if providers == nil {
		providers = &marketplace.Providers{}
	}
	s.snapshot.Store(providers)
}

// All returns the current snapshot. Callers must not modify it.
func (s *StaticSource) All() *marketplace.Providers {
	return s.snapshot.Load()
}

func (s *StaticSource) Provider(_ context.Context, id string) (*marketplace.Provider, error) {
	provider := s.snapshot.Load().FindByID(id)
	if provider == nil {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, id)
	}
	return provider, nil
}
