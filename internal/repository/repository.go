// Package repository implements durable, single-writer-per-job CRUD
// over BatchJob and PosterStatus rows, in sqlx style
// (ExecContext/GetContext/SelectContext, sql.ErrNoRows -> nil,
// COALESCE for nullable text columns).
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/database"
	"maukemana-backend/internal/model"
)

// JobRepository is the sole writer of BatchJob and PosterStatus rows.
// All other components read through, or mutate via, this type.
type JobRepository struct {
	db *database.DB
}

// New creates a new JobRepository.
func New(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob inserts a new batch job row.
func (r *JobRepository) CreateJob(ctx context.Context, job *model.BatchJob) error {
	query := `
		INSERT INTO batch_jobs (
			id, user_id, name, source, status, priority, badge_types,
			selected_poster_ids, total_posters, completed_posters, failed_posters,
			created_at, estimated_completion
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.Name, job.Source, job.Status, job.Priority,
		job.BadgeTypes, job.SelectedPosterIDs, job.TotalPosters,
		job.CompletedPosters, job.FailedPosters, job.CreatedAt, job.EstimatedCompletion)
	if err != nil {
		return batcherr.Repository("repository.create_job", fmt.Errorf("create job: %w", err))
	}
	return nil
}

// GetJob fetches a job by id. Returns (nil, nil) if not found.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*model.BatchJob, error) {
	var job model.BatchJob
	query := `
		SELECT id, user_id, name, source, status, priority, badge_types,
		       selected_poster_ids, total_posters, completed_posters, failed_posters,
		       created_at, started_at, completed_at, estimated_completion,
		       COALESCE(error_summary, '') AS error_summary
		FROM batch_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, batcherr.Repository("repository.get_job", fmt.Errorf("get job: %w", err))
	}
	return &job, nil
}

// ListQueued returns queued jobs ordered by priority ascending (lower
// number = higher priority), ties broken by created_at ascending — the
// order the dispatcher consumes from.
func (r *JobRepository) ListQueued(ctx context.Context) ([]model.BatchJob, error) {
	var jobs []model.BatchJob
	query := `
		SELECT id, user_id, name, source, status, priority, badge_types,
		       selected_poster_ids, total_posters, completed_posters, failed_posters,
		       created_at, started_at, completed_at, estimated_completion,
		       COALESCE(error_summary, '') AS error_summary
		FROM batch_jobs WHERE status = $1 ORDER BY priority ASC, created_at ASC`

	err := r.db.SelectContext(ctx, &jobs, query, model.JobQueued)
	if err != nil {
		return nil, batcherr.Repository("repository.list_queued", fmt.Errorf("list queued: %w", err))
	}
	return jobs, nil
}

// ListJobsForUser returns one page of userID's jobs ordered by
// created_at descending (newest first), along with the total matching
// row count for pagination metadata.
func (r *JobRepository) ListJobsForUser(ctx context.Context, userID string, limit, offset int) ([]model.BatchJob, int, error) {
	var jobs []model.BatchJob
	query := `
		SELECT id, user_id, name, source, status, priority, badge_types,
		       selected_poster_ids, total_posters, completed_posters, failed_posters,
		       created_at, started_at, completed_at, estimated_completion,
		       COALESCE(error_summary, '') AS error_summary
		FROM batch_jobs WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &jobs, query, userID, limit, offset); err != nil {
		return nil, 0, batcherr.Repository("repository.list_jobs_for_user", fmt.Errorf("list jobs: %w", err))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM batch_jobs WHERE user_id = $1`, userID); err != nil {
		return nil, 0, batcherr.Repository("repository.list_jobs_for_user", fmt.Errorf("count jobs: %w", err))
	}

	return jobs, total, nil
}

// UpdateJobStatus transitions a job's status. Terminal states are
// never re-opened; callers are expected to have checked Terminal()
// before calling for administrative transitions (the Batch Worker
// enforces this for its own transitions internally).
func (r *JobRepository) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE batch_jobs SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return batcherr.Repository("repository.update_job_status", fmt.Errorf("update job status: %w", err))
	}
	return nil
}

// UpdateCounters sets the completed/failed poster counters for a job.
// Called only by the job's owning Batch Worker (single-writer).
func (r *JobRepository) UpdateCounters(ctx context.Context, id string, completed, failed int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE batch_jobs SET completed_posters = $1, failed_posters = $2 WHERE id = $3`,
		completed, failed, id)
	if err != nil {
		return batcherr.Repository("repository.update_counters", fmt.Errorf("update counters: %w", err))
	}
	return nil
}

// UpdateTimestamps sets started_at and/or completed_at. A nil pointer
// leaves the corresponding column untouched.
func (r *JobRepository) UpdateTimestamps(ctx context.Context, id string, started, completed *time.Time) error {
	if started != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE batch_jobs SET started_at = $1 WHERE id = $2`, *started, id); err != nil {
			return batcherr.Repository("repository.update_timestamps", fmt.Errorf("update started_at: %w", err))
		}
	}
	if completed != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE batch_jobs SET completed_at = $1 WHERE id = $2`, *completed, id); err != nil {
			return batcherr.Repository("repository.update_timestamps", fmt.Errorf("update completed_at: %w", err))
		}
	}
	return nil
}

// SetErrorSummary populates the terminal error_summary field.
func (r *JobRepository) SetErrorSummary(ctx context.Context, id, text string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE batch_jobs SET error_summary = $1 WHERE id = $2`, text, id)
	if err != nil {
		return batcherr.Repository("repository.set_error_summary", fmt.Errorf("set error summary: %w", err))
	}
	return nil
}

// GetPosterStatus fetches one (job_id, poster_id) row. Returns (nil, nil)
// if the row has not been created yet (rows may be created lazily).
func (r *JobRepository) GetPosterStatus(ctx context.Context, jobID, posterID string) (*model.PosterStatus, error) {
	var ps model.PosterStatus
	query := `
		SELECT job_id, poster_id, status, started_at, completed_at,
		       COALESCE(output_path, '') AS output_path,
		       COALESCE(error_message, '') AS error_message, retry_count
		FROM poster_processing_status WHERE job_id = $1 AND poster_id = $2`

	err := r.db.GetContext(ctx, &ps, query, jobID, posterID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, batcherr.Repository("repository.get_poster_status", fmt.Errorf("get poster status: %w", err))
	}
	return &ps, nil
}

// UpsertPosterStatus inserts or updates a poster status row, keyed on
// the unique (job_id, poster_id) pair.
func (r *JobRepository) UpsertPosterStatus(ctx context.Context, ps *model.PosterStatus) error {
	query := `
		INSERT INTO poster_processing_status (
			job_id, poster_id, status, started_at, completed_at,
			output_path, error_message, retry_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id, poster_id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			output_path = EXCLUDED.output_path,
			error_message = EXCLUDED.error_message,
			retry_count = EXCLUDED.retry_count`

	_, err := r.db.ExecContext(ctx, query,
		ps.JobID, ps.PosterID, ps.Status, ps.StartedAt, ps.CompletedAt,
		ps.OutputPath, ps.ErrorMessage, ps.RetryCount)
	if err != nil {
		return batcherr.Repository("repository.upsert_poster_status", fmt.Errorf("upsert poster status: %w", err))
	}
	return nil
}

// UpdatePosterRetry sets the retry_count for one poster status row.
func (r *JobRepository) UpdatePosterRetry(ctx context.Context, jobID, posterID string, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE poster_processing_status SET retry_count = $1 WHERE job_id = $2 AND poster_id = $3`,
		count, jobID, posterID)
	if err != nil {
		return batcherr.Repository("repository.update_poster_retry", fmt.Errorf("update poster retry: %w", err))
	}
	return nil
}
