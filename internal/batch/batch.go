// Package batch implements job submission: validates a request,
// classifies it immediate vs. batch, derives priority and a duration
// estimate, and persists the resulting BatchJob via the repository
// before handing it to the queue.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/model"
)

// Method is the scheduling hint returned with a created job: it never
// changes the processing pipeline (immediate and batch jobs run through
// the same worker), nor the job's priority or queue order.
type Method string

const (
	MethodImmediate Method = "immediate"
	MethodBatch     Method = "batch"
)

// Tier is the submitting user's account tier, used to derive priority.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// ValidationError is returned by CreateBatchJob for a named validation
// failure (empty/too-many/duplicate poster ids, empty or unknown
// badge types).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	ErrEmptyPosters      = &ValidationError{Reason: "EmptyPosters"}
	ErrTooManyPosters    = &ValidationError{Reason: "TooManyPosters"}
	ErrEmptyBadgeTypes   = &ValidationError{Reason: "EmptyBadgeTypes"}
	ErrUnknownBadgeType  = &ValidationError{Reason: "UnknownBadgeType"}
	ErrDuplicatePosters  = &ValidationError{Reason: "DuplicatePosters"}
)

// Repository is the subset of the job repository the decision engine
// needs to persist a newly created job.
type Repository interface {
	CreateJob(ctx context.Context, job *model.BatchJob) error
}

// Queue is the subset of the shared job queue that a freshly created
// job is enqueued onto.
type Queue interface {
	Enqueue(job *model.BatchJob)
}

// Engine validates and creates batch jobs.
type Engine struct {
	repo  Repository
	queue Queue
	now   func() time.Time
}

// New creates a new decision engine. now defaults to time.Now and is
// overridable in tests.
func New(repo Repository, queue Queue) *Engine {
	return &Engine{repo: repo, queue: queue, now: time.Now}
}

// CreateBatchJob validates a submission, derives its priority and
// duration estimate, persists the job, and enqueues it for dispatch.
func (e *Engine) CreateBatchJob(
	ctx context.Context,
	userID, name string,
	posterIDs []string,
	badgeTypes []model.BadgeType,
	source model.JobSource,
	tier Tier,
) (*model.BatchJob, Method, error) {
	if err := validate(posterIDs, badgeTypes); err != nil {
		return nil, "", err
	}

	method := decideMethod(source, posterIDs)
	priority := decidePriority(source, tier)
	createdAt := e.now()

	job := &model.BatchJob{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Name:                name,
		Source:              source,
		Status:              model.JobQueued,
		Priority:            priority,
		BadgeTypes:          badgeTypesToStrings(badgeTypes),
		SelectedPosterIDs:   posterIDs,
		TotalPosters:        len(posterIDs),
		CreatedAt:           createdAt,
		EstimatedCompletion: estimatedCompletion(createdAt, len(posterIDs), len(badgeTypes)),
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return nil, "", fmt.Errorf("create batch job: %w", err)
	}

	e.queue.Enqueue(job)

	return job, method, nil
}

func validate(posterIDs []string, badgeTypes []model.BadgeType) error {
	if len(posterIDs) == 0 {
		return ErrEmptyPosters
	}
	if len(posterIDs) > model.MaxSelectedPosters {
		return ErrTooManyPosters
	}
	if len(badgeTypes) == 0 {
		return ErrEmptyBadgeTypes
	}
	seen := make(map[string]struct{}, len(posterIDs))
	for _, id := range posterIDs {
		if _, dup := seen[id]; dup {
			return ErrDuplicatePosters
		}
		seen[id] = struct{}{}
	}
	for _, bt := range badgeTypes {
		if !bt.Valid() {
			return ErrUnknownBadgeType
		}
	}
	return nil
}

// decideMethod selects a method: scheduled submissions are always
// batch; otherwise immediate iff exactly one poster was selected.
func decideMethod(source model.JobSource, posterIDs []string) Method {
	if source == model.SourceScheduled {
		return MethodBatch
	}
	if len(posterIDs) == 1 {
		return MethodImmediate
	}
	return MethodBatch
}

// decidePriority applies the priority table. Unknown tiers fall back
// to NORMAL.
func decidePriority(source model.JobSource, tier Tier) int {
	switch source {
	case model.SourceScheduled:
		return model.PriorityScheduled
	case model.SourceManual:
		if tier == TierPremium {
			return model.PriorityHigh
		}
		return model.PriorityNormal
	default:
		return model.PriorityNormal
	}
}

// estimatedCompletion derives an advisory duration estimate:
// |poster_ids| * (5s + 2s * |badge_types|).
func estimatedCompletion(createdAt time.Time, numPosters, numBadges int) *time.Time {
	perPoster := 5*time.Second + 2*time.Second*time.Duration(numBadges)
	total := createdAt.Add(perPoster * time.Duration(numPosters))
	return &total
}

func badgeTypesToStrings(bts []model.BadgeType) model.StringList {
	out := make(model.StringList, len(bts))
	for i, bt := range bts {
		out[i] = string(bt)
	}
	return out
}

// asValidationErr satisfies batcherr.Validation wrapping for callers
// (e.g. httpapi) that want a uniform *batcherr.Error surface instead
// of the bare *ValidationError sentinel values above.
func asValidationErr(err *ValidationError) *batcherr.Error {
	return batcherr.Validation("batch.create_batch_job", err)
}

// AsBatchError wraps a *ValidationError (or nil) into the shared error
// taxonomy, for callers that want one error type across the core.
func AsBatchError(err error) error {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*ValidationError); ok {
		return asValidationErr(ve)
	}
	return err
}
