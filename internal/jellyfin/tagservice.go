package jellyfin

import (
	"context"
	"fmt"

	"maukemana-backend/internal/batcherr"
)

// TagService generalizes tag mutation into its own concern, separate
// from the Poster Processor's per-item pipeline: one media item's tag
// (C7 step 5) and an operator-triggered batch retag are the same
// underlying call repeated over a set of ids.
type TagService struct {
	client *Client
}

// NewTagService wraps client for tag-only operations.
func NewTagService(client *Client) *TagService {
	return &TagService{client: client}
}

// AddTag attaches tag to one media item.
func (s *TagService) AddTag(ctx context.Context, id, tag string) error {
	return s.client.AddTag(ctx, id, tag)
}

// AddTagToItems attaches tag to every id in ids, continuing past
// individual failures so one bad id doesn't abort the batch. It
// returns a combined error naming every id that failed, or nil if all
// succeeded.
func (s *TagService) AddTagToItems(ctx context.Context, ids []string, tag string) error {
	var failed []string
	for _, id := range ids {
		if err := s.client.AddTag(ctx, id, tag); err != nil {
			failed = append(failed, id)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return batcherr.Transient("jellyfin.add_tag_to_items",
		fmt.Errorf("failed to tag %d of %d items: %v", len(failed), len(ids), failed))
}
