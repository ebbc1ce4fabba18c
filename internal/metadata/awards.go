package metadata

import (
	"encoding/json"
	"os"

	"maukemana-backend/internal/model"
)

// awardsImage maps a (color_scheme, source) pair to a badge image
// filename, e.g. "black/oscars.png".
func awardsImage(colorScheme, source string) string {
	return colorScheme + "/" + source + ".png"
}

// AwardsDataset is a bundled, offline awards-by-external-id lookup: a
// JSON document keyed by external provider id for O(1) lookup at
// badge-extraction time, since extractors look up by id, not by
// title.
type AwardsDataset struct {
	// WinnersByTmdbID maps a TMDB id to the list of award source keys
	// (e.g. "oscars", "emmys", "golden_globes") that title has won.
	WinnersByTmdbID map[string][]string `json:"winners_by_tmdb_id"`
}

// LoadAwardsDataset reads the bundled dataset from path. A missing
// file is not an error — the extractor simply returns not-applicable
// for every lookup.
func LoadAwardsDataset(path string) (*AwardsDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &AwardsDataset{WinnersByTmdbID: map[string][]string{}}, nil
		}
		return nil, err
	}
	var ds AwardsDataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, err
	}
	if ds.WinnersByTmdbID == nil {
		ds.WinnersByTmdbID = map[string][]string{}
	}
	return &ds, nil
}

// AwardsExtractor queries the bundled dataset keyed by TMDB id.
type AwardsExtractor struct {
	dataset        *AwardsDataset
	colorScheme    string
	sourcesEnabled map[string]struct{}
}

// NewAwardsExtractor builds an extractor over dataset, rendering
// badges in colorScheme and only for the enabled award sources.
func NewAwardsExtractor(dataset *AwardsDataset, colorScheme string, sourcesEnabled []string) *AwardsExtractor {
	enabled := make(map[string]struct{}, len(sourcesEnabled))
	for _, s := range sourcesEnabled {
		enabled[s] = struct{}{}
	}
	return &AwardsExtractor{dataset: dataset, colorScheme: colorScheme, sourcesEnabled: enabled}
}

// Extract implements the awards badge contract.
func (e *AwardsExtractor) Extract(record model.MediaRecord) model.BadgePayload {
	tmdbID := record.TmdbID()
	if tmdbID == "" {
		return model.NotApplicable(model.BadgeAwards)
	}

	won, ok := e.dataset.WinnersByTmdbID[tmdbID]
	if !ok || len(won) == 0 {
		return model.NotApplicable(model.BadgeAwards)
	}

	var sources []string
	for _, source := range won {
		if _, enabled := e.sourcesEnabled[source]; enabled {
			sources = append(sources, source)
		}
	}
	if len(sources) == 0 {
		return model.NotApplicable(model.BadgeAwards)
	}

	return model.BadgePayload{
		Type:       model.BadgeAwards,
		Applicable: true,
		ImageAsset: awardsImage(e.colorScheme, sources[0]),
		SubBadges:  sources,
	}
}
