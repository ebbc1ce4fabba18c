// Package model defines the durable data types shared by the batch
// processing core: BatchJob, PosterStatus, and the closed sets of
// tagged values (status, source, badge type) they are built from.
package model

import (
	"time"
)

// JobSource identifies where a batch job submission originated.
type JobSource string

const (
	SourceManual    JobSource = "manual"
	SourceScheduled JobSource = "scheduled"
	SourceAPI       JobSource = "api"
)

// Valid reports whether s is one of the known job sources.
func (s JobSource) Valid() bool {
	switch s {
	case SourceManual, SourceScheduled, SourceAPI:
		return true
	default:
		return false
	}
}

// JobStatus is the lifecycle state of a BatchJob.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobPaused     JobStatus = "paused"
	JobCancelled  JobStatus = "cancelled"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status never transitions again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// BadgeType is one of the four closed badge kinds a job can request.
type BadgeType string

const (
	BadgeAudio      BadgeType = "audio"
	BadgeResolution BadgeType = "resolution"
	BadgeReview     BadgeType = "review"
	BadgeAwards     BadgeType = "awards"
)

// Valid reports whether b is a recognised badge type.
func (b BadgeType) Valid() bool {
	switch b {
	case BadgeAudio, BadgeResolution, BadgeReview, BadgeAwards:
		return true
	default:
		return false
	}
}

// AllBadgeTypes enumerates the closed badge-type set, in a stable order.
var AllBadgeTypes = []BadgeType{BadgeAudio, BadgeResolution, BadgeReview, BadgeAwards}

// Priority values. Lower sorts first.
const (
	PriorityHigh      = 3
	PriorityNormal    = 5
	PriorityScheduled = 7
)

// MaxSelectedPosters is the hard cap on a single job's poster_ids length.
const MaxSelectedPosters = 1000

// MaxRetries is the per-poster retry cap.
const MaxRetries = 3

// BatchJob is the root aggregate for one submission of posters to be
// enriched with a given set of badge types. It is mutated only by its
// owning worker (status/counters) or by an administrative
// cancel/pause/resume routed through the repository.
type BatchJob struct {
	ID                  string     `db:"id" json:"id"`
	UserID              string     `db:"user_id" json:"user_id"`
	Name                string     `db:"name" json:"name"`
	Source              JobSource  `db:"source" json:"source"`
	Status              JobStatus  `db:"status" json:"status"`
	Priority            int        `db:"priority" json:"priority"`
	BadgeTypes          StringList `db:"badge_types" json:"badge_types"`
	SelectedPosterIDs   StringList `db:"selected_poster_ids" json:"selected_poster_ids"`
	TotalPosters        int        `db:"total_posters" json:"total_posters"`
	CompletedPosters    int        `db:"completed_posters" json:"completed_posters"`
	FailedPosters       int        `db:"failed_posters" json:"failed_posters"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	StartedAt           *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt         *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `db:"estimated_completion" json:"estimated_completion,omitempty"`
	ErrorSummary        string     `db:"error_summary" json:"error_summary,omitempty"`
}

// Done reports whether every selected poster has reached a terminal
// per-poster state.
func (j *BatchJob) Done() bool {
	return j.CompletedPosters+j.FailedPosters == j.TotalPosters
}

// PosterState is the per-item status of one poster within one job.
type PosterState string

const (
	PosterPending    PosterState = "pending"
	PosterProcessing PosterState = "processing"
	PosterCompleted  PosterState = "completed"
	PosterFailed     PosterState = "failed"
	PosterRetrying   PosterState = "retrying"
)

// CanTransitionTo reports whether moving from s to next respects the
// state lattice: pending -> processing -> {completed|failed|retrying},
// retrying -> processing.
func (s PosterState) CanTransitionTo(next PosterState) bool {
	switch s {
	case PosterPending:
		return next == PosterProcessing
	case PosterProcessing:
		switch next {
		case PosterCompleted, PosterFailed, PosterRetrying:
			return true
		default:
			return false
		}
	case PosterRetrying:
		return next == PosterProcessing
	default:
		return false
	}
}

// PosterStatus is the child row tracking one poster's progress within
// one job. The composite key is (JobID, PosterID).
type PosterStatus struct {
	JobID        string      `db:"job_id" json:"job_id"`
	PosterID     string      `db:"poster_id" json:"poster_id"`
	Status       PosterState `db:"status" json:"status"`
	StartedAt    *time.Time  `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	OutputPath   string      `db:"output_path" json:"output_path,omitempty"`
	ErrorMessage string      `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int         `db:"retry_count" json:"retry_count"`
}
