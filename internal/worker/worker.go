// Package worker executes one BatchJob end-to-end: iterating its
// poster ids, invoking the poster processor for each, updating the
// repository and progress tracker, honouring cooperative
// cancellation/pause and the retry policy. One orchestrating method
// drives the whole job; errors are captured and logged rather than
// propagated out of the run loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/model"
	"maukemana-backend/internal/poster"
	"maukemana-backend/internal/progress"
)

// Repository is the subset of the job repository the worker needs to
// drive one job through to a terminal status.
type Repository interface {
	GetJob(ctx context.Context, id string) (*model.BatchJob, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error
	UpdateCounters(ctx context.Context, id string, completed, failed int) error
	UpdateTimestamps(ctx context.Context, id string, started, completed *time.Time) error
	SetErrorSummary(ctx context.Context, id, text string) error
	GetPosterStatus(ctx context.Context, jobID, posterID string) (*model.PosterStatus, error)
	UpsertPosterStatus(ctx context.Context, ps *model.PosterStatus) error
}

// Processor runs one poster through the full processing pipeline.
type Processor interface {
	ProcessPoster(ctx context.Context, jobID, posterID string, badgeTypes []model.BadgeType) poster.Result
}

// Tracker is the subset of the progress tracker the worker uses.
type Tracker interface {
	StartJob(jobID string, total int)
	UpdatePoster(jobID, posterID string, status model.PosterState, errMsg string) progress.Event
	EndJob(jobID string)
}

// Worker executes BatchJobs one at a time; the dispatcher owns the
// decision of how many Workers run concurrently.
type Worker struct {
	repo      Repository
	processor Processor
	tracker   Tracker
	log       *slog.Logger

	maxRetries int
	throttle   time.Duration
}

// New creates a Worker. maxRetries bounds per-poster retries; throttle
// is the inter-poster sleep.
func New(repo Repository, processor Processor, tracker Tracker, log *slog.Logger, maxRetries int, throttle time.Duration) *Worker {
	return &Worker{
		repo:       repo,
		processor:  processor,
		tracker:    tracker,
		log:        log,
		maxRetries: maxRetries,
		throttle:   throttle,
	}
}

// Run executes job end-to-end. It returns once the job reaches a
// terminal status, is found paused between posters (its status is
// left paused), or ctx is cancelled by the dispatcher.
func (w *Worker) Run(ctx context.Context, job *model.BatchJob) {
	log := w.log.With("job_id", job.ID)

	current, err := w.repo.GetJob(ctx, job.ID)
	if err != nil {
		log.Error("worker: failed to load job", "error", err)
		return
	}
	if current == nil {
		log.Warn("worker: job not found at startup")
		return
	}
	if current.Status.Terminal() {
		return
	}

	startedAt := time.Now()
	if err := w.repo.UpdateJobStatus(ctx, job.ID, model.JobProcessing); err != nil {
		log.Error("worker: failed to transition to processing, failing job", "error", err)
		w.failJob(ctx, job.ID, "repository error at startup")
		return
	}
	if err := w.repo.UpdateTimestamps(ctx, job.ID, &startedAt, nil); err != nil {
		log.Warn("worker: failed to stamp started_at", "error", err)
	}

	w.tracker.StartJob(job.ID, current.TotalPosters)
	defer w.tracker.EndJob(job.ID)

	completed, failed, outcome, failureSummary := w.runLoop(ctx, log, current)

	w.finalize(ctx, log, job.ID, completed, failed, outcome, failureSummary)
}

// loopOutcome records why the main loop exited, driving finalisation.
type loopOutcome int

const (
	outcomeCompleted loopOutcome = iota
	outcomeCancelled
	outcomePaused
	outcomeRepositoryFailure
)

func (w *Worker) runLoop(ctx context.Context, log *slog.Logger, job *model.BatchJob) (completed, failed int, outcome loopOutcome, failureSummary string) {
	badgeTypes := stringsToBadgeTypes(job.BadgeTypes)
	var failureKinds []string
	completed, failed = job.CompletedPosters, job.FailedPosters

	for _, posterID := range job.SelectedPosterIDs {
		// Step 1: re-read job status between posters (never mid-poster).
		current, err := w.repo.GetJob(ctx, job.ID)
		if err != nil {
			log.Error("worker: repository failure re-reading job status", "error", err)
			return completed, failed, outcomeRepositoryFailure, ""
		}
		if current == nil {
			return completed, failed, outcomeRepositoryFailure, ""
		}
		if current.Status == model.JobCancelled {
			return completed, failed, outcomeCancelled, ""
		}
		if current.Status == model.JobPaused {
			return completed, failed, outcomePaused, ""
		}

		ps, err := w.repo.GetPosterStatus(ctx, job.ID, posterID)
		if err != nil {
			log.Error("worker: repository failure reading poster status", "poster_id", posterID, "error", err)
			return completed, failed, outcomeRepositoryFailure, ""
		}
		if ps != nil && (ps.Status == model.PosterCompleted || ps.Status == model.PosterFailed) {
			// Already reached a terminal state on a prior run of this
			// job (e.g. before a pause/resume); counted in job.CompletedPosters/
			// FailedPosters already, so skip reprocessing it.
			continue
		}

		posterFailed, kind := w.runPosterWithRetries(ctx, log, job.ID, posterID, badgeTypes)
		if posterFailed {
			failed++
			if kind != "" {
				failureKinds = append(failureKinds, kind)
			}
		} else {
			completed++
		}

		if err := w.repo.UpdateCounters(ctx, job.ID, completed, failed); err != nil {
			log.Error("worker: repository failure updating counters", "error", err)
			return completed, failed, outcomeRepositoryFailure, ""
		}

		select {
		case <-ctx.Done():
			return completed, failed, outcomeCancelled, ""
		case <-time.After(w.throttle):
		}
	}

	return completed, failed, outcomeCompleted, summarizeFailures(failureKinds)
}

// runPosterWithRetries drives one poster through the processor,
// applying the retry policy: retryable errors re-attempt the same
// poster immediately (up to maxRetries) before being marked failed.
func (w *Worker) runPosterWithRetries(ctx context.Context, log *slog.Logger, jobID, posterID string, badgeTypes []model.BadgeType) (failed bool, errorKind string) {
	retryCount := 0

	for {
		status := model.PosterProcessing
		now := time.Now()
		w.upsertStatus(ctx, jobID, posterID, status, "", retryCount, &now, nil, "")
		w.tracker.UpdatePoster(jobID, posterID, status, "")

		result := w.processor.ProcessPoster(ctx, jobID, posterID, badgeTypes)
		completedAt := time.Now()

		if result.Err == nil {
			status = model.PosterCompleted
			w.upsertStatus(ctx, jobID, posterID, status, "", retryCount, &now, &completedAt, result.OutputPath)
			w.tracker.UpdatePoster(jobID, posterID, status, "")
			return false, ""
		}

		log.Warn("worker: poster attempt failed", "poster_id", posterID, "error", result.Err, "retry_count", retryCount)
		kind := classifyKind(result.Err)

		if batcherr.IsRetryable(result.Err) && retryCount < w.maxRetries {
			retryCount++
			status = model.PosterRetrying
			w.upsertStatus(ctx, jobID, posterID, status, result.Err.Error(), retryCount, &now, nil, "")
			w.tracker.UpdatePoster(jobID, posterID, status, result.Err.Error())
			continue
		}

		status = model.PosterFailed
		w.upsertStatus(ctx, jobID, posterID, status, result.Err.Error(), retryCount, &now, &completedAt, "")
		w.tracker.UpdatePoster(jobID, posterID, status, result.Err.Error())
		return true, kind
	}
}

func (w *Worker) upsertStatus(ctx context.Context, jobID, posterID string, status model.PosterState, errMsg string, retryCount int, startedAt, completedAt *time.Time, outputPath string) {
	ps := &model.PosterStatus{
		JobID:        jobID,
		PosterID:     posterID,
		Status:       status,
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		OutputPath:   outputPath,
		ErrorMessage: errMsg,
		RetryCount:   retryCount,
	}
	if err := w.repo.UpsertPosterStatus(ctx, ps); err != nil {
		w.log.Error("worker: failed to persist poster status", "job_id", jobID, "poster_id", posterID, "error", err)
	}
}

func (w *Worker) finalize(ctx context.Context, log *slog.Logger, jobID string, completed, failed int, outcome loopOutcome, failureSummary string) {
	completedAt := time.Now()

	var finalStatus model.JobStatus
	switch outcome {
	case outcomePaused:
		// Returning to the queue: leave status as paused (an
		// administrative command already set it); no completed_at stamp.
		return
	case outcomeCancelled:
		finalStatus = model.JobCancelled
	case outcomeRepositoryFailure:
		finalStatus = model.JobFailed
	default:
		if failed == 0 {
			finalStatus = model.JobCompleted
		} else {
			finalStatus = model.JobFailed
		}
	}

	if err := w.repo.UpdateJobStatus(ctx, jobID, finalStatus); err != nil {
		log.Error("worker: failed to persist final job status", "error", err, "status", finalStatus)
	}
	if err := w.repo.UpdateTimestamps(ctx, jobID, nil, &completedAt); err != nil {
		log.Error("worker: failed to stamp completed_at", "error", err)
	}
	if finalStatus == model.JobFailed {
		summary := fmt.Sprintf("%d of %d posters failed", failed, completed+failed)
		if failureSummary != "" {
			summary += " (" + failureSummary + ")"
		}
		if err := w.repo.SetErrorSummary(ctx, jobID, summary); err != nil {
			log.Error("worker: failed to persist error summary", "error", err)
		}
	}
}

func (w *Worker) failJob(ctx context.Context, jobID, reason string) {
	_ = w.repo.UpdateJobStatus(ctx, jobID, model.JobFailed)
	_ = w.repo.SetErrorSummary(ctx, jobID, reason)
}

func stringsToBadgeTypes(ss []string) []model.BadgeType {
	out := make([]model.BadgeType, 0, len(ss))
	for _, s := range ss {
		out = append(out, model.BadgeType(s))
	}
	return out
}

func classifyKind(err error) string {
	var be *batcherr.Error
	if errors.As(err, &be) {
		return string(be.Kind)
	}
	return "unknown"
}

func summarizeFailures(kinds []string) string {
	counts := make(map[string]int)
	for _, k := range kinds {
		counts[k]++
	}
	summary := ""
	for k, n := range counts {
		if summary != "" {
			summary += ", "
		}
		summary += fmt.Sprintf("%s:%d", k, n)
	}
	return summary
}
