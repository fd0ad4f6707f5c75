package scoring

import (
	"context"
	"math"
	"sync"

	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

// Scorer scores one provider against one job. Implementations must always
// return a well-formed result; failures are handled inside the scorer.
type Scorer interface {
	Score(ctx context.Context, provider *marketplace.Provider, job *marketplace.Job) *marketplace.MatchResult
}

// ScoreAll runs one Score call per provider concurrently and returns the
// results in provider order.
func ScoreAll(ctx context.Context, s Scorer, providers []*marketplace.Provider, job *marketplace.Job) []*marketplace.MatchResult {
	results := make([]*marketplace.MatchResult, len(providers))

	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func(idx int, p *marketplace.Provider) {
			defer wg.Done()
			results[idx] = s.Score(ctx, p, job)
		}(i, provider)
	}
	wg.Wait()

	return results
}

// Clamp bounds v to [0,100]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// ClampInt rounds v and bounds it to [0,100].
func ClampInt(v float64) int {
	return int(math.Round(Clamp(v)))
}
