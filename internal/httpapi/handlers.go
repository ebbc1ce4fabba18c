// Package httpapi exposes batch job management over HTTP: job
// submission, job control (cancel/pause/resume), and a WebSocket
// progress subscription. Each handler is a thin translation from an
// HTTP request onto a narrow collaborator interface — a handler struct
// holding one method per route, responses sent through a shared
// envelope helper.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"maukemana-backend/internal/batch"
	"maukemana-backend/internal/model"
	"maukemana-backend/internal/progress"
	"maukemana-backend/internal/utils"
)

// ListBatchJobs handles GET /api/v1/batches, the caller's own job
// history. Standard page/limit query parameters are honoured, capped
// at 100 per page.
func (h *Handler) ListBatchJobs(c *gin.Context) {
	ctx := c.Request.Context()
	userID := requestUserID(c)

	page, limit := utils.GetPagination(c)
	offset := utils.GetOffset(page, limit)

	jobs, total, err := h.repo.ListJobsForUser(ctx, userID, limit, offset)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	utils.SendPaginated(c, "batch jobs retrieved", jobs, page, limit, total)
}

// Engine is the subset of the job submission engine the HTTP layer
// calls.
type Engine interface {
	CreateBatchJob(ctx context.Context, userID, name string, posterIDs []string, badgeTypes []model.BadgeType, source model.JobSource, tier batch.Tier) (*model.BatchJob, batch.Method, error)
}

// Repository is the subset of the job repository the HTTP layer reads
// from and writes to directly: job lookup for job control and for
// seeding a subscriber's initial snapshot, the paginated listing used
// by ListBatchJobs, and the administrative status write Pause/Resume
// perform.
type Repository interface {
	GetJob(ctx context.Context, id string) (*model.BatchJob, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error
	ListJobsForUser(ctx context.Context, userID string, limit, offset int) ([]model.BatchJob, int, error)
}

// Queue is the subset of the shared job queue the HTTP layer removes
// still-queued jobs from on cancel and pushes a job back onto on
// resume.
type Queue interface {
	Remove(jobID string) bool
	Enqueue(job *model.BatchJob)
}

// JobCanceller is the subset of the dispatcher the HTTP layer signals
// for a job that is already running.
type JobCanceller interface {
	CancelJob(jobID string) bool
}

// Tracker is the subset of the progress tracker used to seed a new
// WebSocket subscriber with the current aggregate snapshot.
type Tracker interface {
	Progress(jobID string) progress.Snapshot
}

// Subscriber is the subset of the WebSocket hub that upgrades a
// progress subscription request.
type Subscriber interface {
	Subscribe(w http.ResponseWriter, r *http.Request, jobID string, snapshot progress.Snapshot) error
}

// Handler wires the three external interfaces onto gin.HandlerFuncs.
type Handler struct {
	engine     Engine
	repo       Repository
	queue      Queue
	dispatcher JobCanceller
	tracker    Tracker
	hub        Subscriber
}

// New creates a Handler. Every argument is the narrow interface above,
// satisfied by the corresponding core component.
func New(engine Engine, repo Repository, queue Queue, dispatcher JobCanceller, tracker Tracker, hub Subscriber) *Handler {
	return &Handler{
		engine:     engine,
		repo:       repo,
		queue:      queue,
		dispatcher: dispatcher,
		tracker:    tracker,
		hub:        hub,
	}
}

// createBatchJobRequest is the wire shape of a batch job submission,
// minus user_id which comes from the request context rather than the
// body.
type createBatchJobRequest struct {
	Name       string   `json:"name" binding:"required"`
	PosterIDs  []string `json:"poster_ids" binding:"required"`
	BadgeTypes []string `json:"badge_types" binding:"required"`
	Source     string   `json:"source"`
	Tier       string   `json:"tier"`
}

// CreateBatchJob handles POST /api/v1/batches.
func (h *Handler) CreateBatchJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req createBatchJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	userID := requestUserID(c)

	source := model.JobSource(req.Source)
	if source == "" {
		source = model.SourceAPI
	}
	if !source.Valid() {
		utils.SendError(c, http.StatusBadRequest, "unknown job source", nil)
		return
	}

	tier := batch.Tier(req.Tier)
	if tier == "" {
		tier = batch.TierStandard
	}

	badgeTypes := make([]model.BadgeType, len(req.BadgeTypes))
	for i, bt := range req.BadgeTypes {
		badgeTypes[i] = model.BadgeType(bt)
	}

	job, method, err := h.engine.CreateBatchJob(ctx, userID, req.Name, req.PosterIDs, badgeTypes, source, tier)
	if err != nil {
		if _, ok := err.(*batch.ValidationError); ok {
			utils.SendValidationError(c, err)
			return
		}
		utils.SendInternalError(c, err)
		return
	}

	utils.SendCreated(c, "batch job created", gin.H{
		"job":    job,
		"method": method,
	})
}

// GetBatchJob handles GET /api/v1/batches/:id.
func (h *Handler) GetBatchJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.repo.GetJob(ctx, id)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	if job == nil {
		utils.SendError(c, http.StatusNotFound, "batch job not found", nil)
		return
	}

	utils.SendSuccess(c, "batch job retrieved", gin.H{
		"job":      job,
		"progress": h.tracker.Progress(id),
	})
}

// CancelBatchJob handles POST /api/v1/batches/:id/cancel. Idempotent:
// a job already in a terminal state is left untouched and reported
// with its current status, without error.
func (h *Handler) CancelBatchJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.repo.GetJob(ctx, id)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	if job == nil {
		utils.SendError(c, http.StatusNotFound, "batch job not found", nil)
		return
	}
	if job.Status.Terminal() {
		utils.SendSuccess(c, "batch job already terminal", gin.H{"job_id": id, "status": job.Status})
		return
	}

	// A running job is signalled through the dispatcher; a still-queued
	// job is simply removed before it is ever dispatched. Both paths may
	// apply (a job can be mid-dequeue), so both are attempted.
	h.queue.Remove(id)
	h.dispatcher.CancelJob(id)

	utils.SendSuccess(c, "cancellation requested", gin.H{"job_id": id})
}

// PauseBatchJob handles POST /api/v1/batches/:id/pause.
func (h *Handler) PauseBatchJob(c *gin.Context) {
	h.setAdminStatus(c, model.JobPaused, "batch job paused")
}

// ResumeBatchJob handles POST /api/v1/batches/:id/resume. Idempotent:
// resuming a non-paused job is a no-op.
func (h *Handler) ResumeBatchJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.repo.GetJob(ctx, id)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	if job == nil {
		utils.SendError(c, http.StatusNotFound, "batch job not found", nil)
		return
	}
	if job.Status != model.JobPaused {
		utils.SendSuccess(c, "batch job not paused, no-op", gin.H{"job_id": id, "status": job.Status})
		return
	}

	if err := h.repo.UpdateJobStatus(ctx, id, model.JobQueued); err != nil {
		utils.SendInternalError(c, err)
		return
	}
	job.Status = model.JobQueued
	h.queue.Enqueue(job)

	utils.SendSuccess(c, "batch job resumed", gin.H{"job_id": id, "status": job.Status})
}

// setAdminStatus is the shared body of Pause: an administrative status
// write that also drops a still-queued job from the queue, so a paused
// job is absent from the queue and the dispatcher until resumed (a
// running job stops at its worker's next between-poster status check).
func (h *Handler) setAdminStatus(c *gin.Context, status model.JobStatus, message string) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.repo.UpdateJobStatus(ctx, id, status); err != nil {
		utils.SendInternalError(c, err)
		return
	}
	h.queue.Remove(id)
	utils.SendSuccess(c, message, gin.H{"job_id": id, "status": status})
}

// SubscribeProgress handles GET /api/v1/batches/:id/progress: upgrades
// to a WebSocket, sends the current aggregate snapshot, then streams
// progress events as they occur.
func (h *Handler) SubscribeProgress(c *gin.Context) {
	id := c.Param("id")
	snapshot := h.tracker.Progress(id)
	if err := h.hub.Subscribe(c.Writer, c.Request, id, snapshot); err != nil {
		utils.SendInternalError(c, err)
	}
}

// requestUserID reads the authenticated user id set by upstream
// middleware, falling back to a header for deployments that terminate
// auth outside this process.
func requestUserID(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.GetHeader("X-User-ID")
}
