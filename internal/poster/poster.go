// Package poster implements the per-item poster pipeline: download the
// original artwork, extract applicable badge metadata, compose the
// overlay, upload the result, and tag the media item. Every attempt
// re-downloads the original rather than reusing a cross-job cache hit,
// so a retried poster always starts from the source of truth.
package poster

import (
	"context"
	"fmt"
	"log/slog"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/cache"
	"maukemana-backend/internal/composer"
	"maukemana-backend/internal/config"
	"maukemana-backend/internal/model"
	"maukemana-backend/internal/progress"
)

// aphroditeTag is the tag applied to every successfully processed
// media item.
const aphroditeTag = "aphrodite-overlay"

// JellyfinClient is the subset of the Jellyfin client the poster
// processor calls directly for image transfer and metadata.
type JellyfinClient interface {
	DownloadPrimary(ctx context.Context, id string) ([]byte, error)
	UploadPrimary(ctx context.Context, id string, imageBytes []byte) error
	GetMedia(ctx context.Context, id string) (*model.MediaRecord, error)
}

// Tagger is the tag service's single-item surface, kept separate from
// JellyfinClient so tagging can be swapped, mocked, or batched
// independently of image transfer.
type Tagger interface {
	AddTag(ctx context.Context, id, tag string) error
}

// Extractor is the shared shape of every metadata extractor: a pure
// function from a media record to a badge payload (Applicable may be
// false).
type Extractor func(record model.MediaRecord) model.BadgePayload

// Notifier is the subset of the progress tracker the processor uses to
// emit the three sub-poster progress points of the pipeline (start,
// composed, uploaded).
type Notifier interface {
	UpdatePoster(jobID, posterID string, status model.PosterState, errMsg string) progress.Event
}

// Result is the outcome of one process_poster call.
type Result struct {
	Success       bool
	OutputPath    string
	AppliedBadges []model.BadgeType
	Err           error
}

// Processor is the per-item poster pipeline.
type Processor struct {
	jellyfin   JellyfinClient
	tagger     Tagger
	cacheStore cache.Store
	extractors map[model.BadgeType]Extractor
	styles     map[model.BadgeType]config.BadgeStyleConfig
	notifier   Notifier
	log        *slog.Logger
}

// New creates a Processor. extractors and styles are expected to
// cover every model.BadgeType; a badge type missing from extractors
// is treated as not-applicable rather than an error.
func New(
	jellyfin JellyfinClient,
	tagger Tagger,
	cacheStore cache.Store,
	extractors map[model.BadgeType]Extractor,
	styles map[model.BadgeType]config.BadgeStyleConfig,
	notifier Notifier,
	log *slog.Logger,
) *Processor {
	return &Processor{
		jellyfin:   jellyfin,
		tagger:     tagger,
		cacheStore: cacheStore,
		extractors: extractors,
		styles:     styles,
		notifier:   notifier,
		log:        log,
	}
}

// ProcessPoster runs the full five-step pipeline for one poster:
// fetch, extract, compose, upload, tag.
func (p *Processor) ProcessPoster(ctx context.Context, jobID, posterID string, badgeTypes []model.BadgeType) Result {
	p.emit(jobID, posterID, model.PosterProcessing, "")

	// Step 1: fetch original. Retry/backoff is handled inside the
	// Jellyfin client itself.
	original, err := p.jellyfin.DownloadPrimary(ctx, posterID)
	if err != nil {
		return Result{Err: fmt.Errorf("fetch original: %w", err)}
	}
	if _, err := p.cacheStore.PutPoster(ctx, posterID, original, cache.Meta{
		JellyfinID:       posterID,
		OriginalPosterID: posterID,
	}); err != nil {
		// A cache-write failure does not block enrichment; the fetched
		// bytes are still held in memory for the rest of the pipeline.
		_ = err
	}

	media, err := p.jellyfin.GetMedia(ctx, posterID)
	if err != nil {
		return Result{Err: fmt.Errorf("get media: %w", err)}
	}

	// Step 2: extract metadata per requested badge type.
	badges := make([]composer.Badge, 0, len(badgeTypes))
	var applied []model.BadgeType
	for _, bt := range badgeTypes {
		extractor, ok := p.extractors[bt]
		if !ok {
			continue
		}
		payload := extractor(*media)
		if !payload.Applicable {
			continue
		}
		style, ok := p.styles[bt]
		if !ok {
			continue
		}
		badges = append(badges, composer.Badge{Payload: payload, Style: style})
		applied = append(applied, bt)
	}

	// Step 3: compose.
	composed, err := composer.Compose(original, badges)
	if err != nil {
		return Result{Err: fmt.Errorf("compose: %w", err)}
	}
	p.emit(jobID, posterID, model.PosterProcessing, "composed")

	outputPath, err := p.cacheStore.PutOutput(ctx, composed)
	if err != nil {
		return Result{Err: batcherr.Compose("poster.process_poster", fmt.Errorf("persist composed output: %w", err))}
	}

	// Step 4: upload.
	if err := p.jellyfin.UploadPrimary(ctx, posterID, composed); err != nil {
		return Result{Err: fmt.Errorf("upload primary: %w", err)}
	}
	p.emit(jobID, posterID, model.PosterProcessing, "uploaded")

	// Step 5: tag. Failures here are logged and surfaced on the
	// progress event but never fail the poster — the image has
	// already been written.
	if err := p.tagger.AddTag(ctx, posterID, aphroditeTag); err != nil {
		if p.log != nil {
			p.log.Warn("poster: failed to tag media item", "job_id", jobID, "poster_id", posterID, "error", err)
		}
		p.emit(jobID, posterID, model.PosterCompleted, "tag failed: "+err.Error())
		return Result{Success: true, OutputPath: outputPath, AppliedBadges: applied}
	}

	return Result{Success: true, OutputPath: outputPath, AppliedBadges: applied}
}

func (p *Processor) emit(jobID, posterID string, status model.PosterState, note string) {
	if p.notifier == nil {
		return
	}
	p.notifier.UpdatePoster(jobID, posterID, status, note)
}
