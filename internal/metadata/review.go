package metadata

import (
	"fmt"

	"maukemana-backend/internal/model"
)

// ReviewExtractor fetches aggregated scores from configured external
// providers in priority order, filters by minimum-votes threshold,
// caps at max_badges_to_display, and emits one sub-badge per enabled
// source.
type ReviewExtractor struct {
	sources        map[string]ReviewSource
	sourcePriority []string
	minVotes       int
	maxBadges      int
}

// NewReviewExtractor builds an extractor over the given sources,
// consulted in sourcePriority order and stopping once maxBadges
// sub-badges have been produced.
func NewReviewExtractor(sources []ReviewSource, sourcePriority []string, minVotes, maxBadges int) *ReviewExtractor {
	byName := make(map[string]ReviewSource, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &ReviewExtractor{
		sources:        byName,
		sourcePriority: sourcePriority,
		minVotes:       minVotes,
		maxBadges:      maxBadges,
	}
}

// Extract implements the review badge contract.
func (e *ReviewExtractor) Extract(record model.MediaRecord) model.BadgePayload {
	tmdbID, imdbID := record.TmdbID(), record.ImdbID()
	if tmdbID == "" && imdbID == "" {
		return model.NotApplicable(model.BadgeReview)
	}

	var subBadges []string
	for _, name := range e.sourcePriority {
		if len(subBadges) >= e.maxBadges {
			break
		}
		source, ok := e.sources[name]
		if !ok {
			continue
		}
		score, votes, ok := source.FetchRating(tmdbID, imdbID)
		if !ok || votes < e.minVotes {
			continue
		}
		subBadges = append(subBadges, formatSubBadge(name, score))
	}

	if len(subBadges) == 0 {
		return model.NotApplicable(model.BadgeReview)
	}

	return model.BadgePayload{
		Type:       model.BadgeReview,
		Applicable: true,
		SubBadges:  subBadges,
	}
}

func formatSubBadge(source string, score float64) string {
	return fmt.Sprintf("%s:%.0f", source, score)
}
