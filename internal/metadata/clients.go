package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"maukemana-backend/internal/batcherr"
)

// httpReviewSource is the shared HTTP plumbing for the TMDB/OMDB
// review-rating clients: one GET, a per-provider rate limiter check,
// and a classified error on non-2xx, mirroring the Jellyfin client's
// classify() shape rather than introducing a second error convention.
type httpReviewSource struct {
	name       string
	apiKey     string
	httpClient *http.Client
	limiter    *ProviderLimiter
}

func newHTTPReviewSource(name, apiKey string, limiter *ProviderLimiter) httpReviewSource {
	return httpReviewSource{
		name:       name,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
	}
}

func (s httpReviewSource) Name() string { return s.name }

func (s httpReviewSource) get(ctx context.Context, url string, out interface{}) error {
	op := "metadata." + s.name + ".fetch_rating"
	if !s.limiter.Allow(s.name) {
		return batcherr.RateLimited(op, fmt.Errorf("%s: local rate limit exceeded", s.name))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return batcherr.Transient(op, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return batcherr.Transient(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return batcherr.RateLimited(op, fmt.Errorf("%s: 429", s.name))
	}
	if resp.StatusCode >= 500 {
		return batcherr.Transient(op, fmt.Errorf("%s: server error %d", s.name, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return batcherr.Permanent(op, fmt.Errorf("%s: client error %d", s.name, resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// TMDBSource fetches TMDB's vote_average/vote_count as a review rating.
type TMDBSource struct {
	httpReviewSource
}

// NewTMDBSource creates a TMDB review source.
func NewTMDBSource(apiKey string, limiter *ProviderLimiter) *TMDBSource {
	return &TMDBSource{newHTTPReviewSource("tmdb", apiKey, limiter)}
}

func (s *TMDBSource) FetchRating(tmdbID, imdbID string) (float64, int, bool) {
	if tmdbID == "" {
		return 0, 0, false
	}
	var payload struct {
		VoteAverage float64 `json:"vote_average"`
		VoteCount   int     `json:"vote_count"`
	}
	url := fmt.Sprintf("https://api.themoviedb.org/3/movie/%s?api_key=%s", tmdbID, s.apiKey)
	if err := s.get(context.Background(), url, &payload); err != nil {
		return 0, 0, false
	}
	return payload.VoteAverage * 10, payload.VoteCount, payload.VoteCount > 0
}

// OMDBSource fetches IMDB's rating/votes via the OMDB API.
type OMDBSource struct {
	httpReviewSource
}

// NewOMDBSource creates an OMDB-backed IMDB review source.
func NewOMDBSource(apiKey string, limiter *ProviderLimiter) *OMDBSource {
	return &OMDBSource{newHTTPReviewSource("imdb", apiKey, limiter)}
}

func (s *OMDBSource) FetchRating(tmdbID, imdbID string) (float64, int, bool) {
	if imdbID == "" {
		return 0, 0, false
	}
	var payload struct {
		ImdbRating string `json:"imdbRating"`
		ImdbVotes  string `json:"imdbVotes"`
	}
	url := fmt.Sprintf("https://www.omdbapi.com/?i=%s&apikey=%s", imdbID, s.apiKey)
	if err := s.get(context.Background(), url, &payload); err != nil {
		return 0, 0, false
	}
	rating := parseFloat(payload.ImdbRating)
	votes := parseVotes(payload.ImdbVotes)
	if votes == 0 {
		return 0, 0, false
	}
	return rating * 10, votes, true
}

// FanartSource queries Fanart.tv purely for badge/logo image assets;
// it does not carry a numeric rating and always reports not-found for
// FetchRating so it can still satisfy ReviewSource for composition
// symmetry with the other providers without being selected by the
// review extractor's priority list.
type FanartSource struct {
	httpReviewSource
}

// NewFanartSource creates a Fanart.tv asset-lookup client.
func NewFanartSource(apiKey string, limiter *ProviderLimiter) *FanartSource {
	return &FanartSource{newHTTPReviewSource("fanart", apiKey, limiter)}
}

func (s *FanartSource) FetchRating(tmdbID, imdbID string) (float64, int, bool) {
	return 0, 0, false
}

// HDLogo fetches the first HD movie logo URL for tmdbID, if any.
func (s *FanartSource) HDLogo(ctx context.Context, tmdbID string) (string, bool) {
	var payload struct {
		HDMovieLogo []struct {
			URL string `json:"url"`
		} `json:"hdmovielogo"`
	}
	url := fmt.Sprintf("https://webservice.fanart.tv/v3/movies/%s?api_key=%s", tmdbID, s.apiKey)
	if err := s.get(ctx, url, &payload); err != nil || len(payload.HDMovieLogo) == 0 {
		return "", false
	}
	return payload.HDMovieLogo[0].URL, true
}

func parseFloat(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	if err != nil {
		return 0
	}
	return f
}

func parseVotes(s string) int {
	var n int
	cleaned := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return 0
	}
	_, err := fmt.Sscanf(string(cleaned), "%d", &n)
	if err != nil {
		return 0
	}
	return n
}
