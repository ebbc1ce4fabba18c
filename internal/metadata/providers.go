package metadata

import (
	"sync"

	"golang.org/x/time/rate"
)

// ProviderLimiter hands out a per-provider token-bucket limiter: a
// lazily-created limiter keyed by provider name and guarded by a
// mutex, one per metadata provider (TMDB/OMDB/Fanart), each with its
// own documented rate ceiling.
type ProviderLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewProviderLimiter creates an empty limiter registry.
func NewProviderLimiter() *ProviderLimiter {
	return &ProviderLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Register configures the rate limit for one provider: r requests
// per second, with burst b.
func (p *ProviderLimiter) Register(provider string, r rate.Limit, b int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters[provider] = rate.NewLimiter(r, b)
}

// Allow reports whether a request to provider may proceed right now.
// Unregistered providers are always allowed (fail open).
func (p *ProviderLimiter) Allow(provider string) bool {
	p.mu.Lock()
	limiter, ok := p.limiters[provider]
	p.mu.Unlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

// ReviewSource is one external review/rating provider, the review
// extractor's collaborator interface. The TMDB/OMDB/Fanart production
// clients and test fakes all satisfy it; FanartSource never reports a
// rating.
type ReviewSource interface {
	// Name is the provider key, e.g. "imdb", "rotten_tomatoes", "metacritic".
	Name() string
	// FetchRating returns a 0-100 normalised score and the raw vote
	// count backing it, or ok=false if no rating is available.
	FetchRating(tmdbID, imdbID string) (score float64, votes int, ok bool)
}
