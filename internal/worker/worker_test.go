package worker_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/model"
	"maukemana-backend/internal/poster"
	"maukemana-backend/internal/progress"
	"maukemana-backend/internal/worker"
)

type fakeRepo struct {
	mu          sync.Mutex
	job         *model.BatchJob
	statuses    map[string]*model.PosterStatus
	setErrorMsg string
}

func newFakeRepo(job *model.BatchJob) *fakeRepo {
	return &fakeRepo{job: job, statuses: make(map[string]*model.PosterStatus)}
}

func (r *fakeRepo) GetJob(ctx context.Context, id string) (*model.BatchJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job == nil || r.job.ID != id {
		return nil, nil
	}
	cp := *r.job
	return &cp, nil
}

func (r *fakeRepo) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Status = status
	return nil
}

func (r *fakeRepo) UpdateCounters(ctx context.Context, id string, completed, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.CompletedPosters = completed
	r.job.FailedPosters = failed
	return nil
}

func (r *fakeRepo) UpdateTimestamps(ctx context.Context, id string, started, completed *time.Time) error {
	return nil
}

func (r *fakeRepo) SetErrorSummary(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setErrorMsg = text
	return nil
}

func (r *fakeRepo) GetPosterStatus(ctx context.Context, jobID, posterID string) (*model.PosterStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[posterID], nil
}

func (r *fakeRepo) UpsertPosterStatus(ctx context.Context, ps *model.PosterStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[ps.PosterID] = ps
	return nil
}

// scriptedProcessor returns results[posterID] in order on successive
// calls for the same poster, looping the last entry once exhausted.
type scriptedProcessor struct {
	mu      sync.Mutex
	scripts map[string][]poster.Result
	calls   map[string]int
}

func newScriptedProcessor(scripts map[string][]poster.Result) *scriptedProcessor {
	return &scriptedProcessor{scripts: scripts, calls: make(map[string]int)}
}

func (p *scriptedProcessor) ProcessPoster(ctx context.Context, jobID, posterID string, badgeTypes []model.BadgeType) poster.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := p.scripts[posterID]
	i := p.calls[posterID]
	if i >= len(results) {
		i = len(results) - 1
	}
	p.calls[posterID]++
	return results[i]
}

type fakeTracker struct {
	mu      sync.Mutex
	started map[string]int
	ended   []string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{started: make(map[string]int)}
}

func (t *fakeTracker) StartJob(jobID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[jobID] = total
}

func (t *fakeTracker) UpdatePoster(jobID, posterID string, status model.PosterState, errMsg string) progress.Event {
	return progress.Event{JobID: jobID, PosterID: posterID, Status: status, Error: errMsg}
}

func (t *fakeTracker) EndJob(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = append(t.ended, jobID)
}

func newJob(id string, posterIDs []string) *model.BatchJob {
	return &model.BatchJob{
		ID:                id,
		Status:            model.JobQueued,
		BadgeTypes:        model.StringList{string(model.BadgeAudio)},
		SelectedPosterIDs: posterIDs,
		TotalPosters:      len(posterIDs),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRunAllPostersSucceed(t *testing.T) {
	job := newJob("job1", []string{"p1", "p2"})
	repo := newFakeRepo(job)
	processor := newScriptedProcessor(map[string][]poster.Result{
		"p1": {{Success: true, OutputPath: "out/p1.jpg"}},
		"p2": {{Success: true, OutputPath: "out/p2.jpg"}},
	})
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 3, 0)

	w.Run(context.Background(), job)

	if repo.job.Status != model.JobCompleted {
		t.Errorf("job status = %v, want completed", repo.job.Status)
	}
	if repo.job.CompletedPosters != 2 || repo.job.FailedPosters != 0 {
		t.Errorf("counters = completed=%d failed=%d, want 2/0", repo.job.CompletedPosters, repo.job.FailedPosters)
	}
}

func TestRunRetriesTransientErrorsThenSucceeds(t *testing.T) {
	job := newJob("job1", []string{"p1"})
	repo := newFakeRepo(job)
	processor := newScriptedProcessor(map[string][]poster.Result{
		"p1": {
			{Err: batcherr.Transient("jellyfin.download_primary", errorf("timeout"))},
			{Err: batcherr.Transient("jellyfin.download_primary", errorf("timeout"))},
			{Success: true, OutputPath: "out/p1.jpg"},
		},
	})
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 3, 0)

	w.Run(context.Background(), job)

	if repo.job.Status != model.JobCompleted {
		t.Errorf("job status = %v, want completed", repo.job.Status)
	}
	if repo.job.CompletedPosters != 1 {
		t.Errorf("completedPosters = %d, want 1", repo.job.CompletedPosters)
	}
	if repo.statuses["p1"].RetryCount != 2 {
		t.Errorf("final RetryCount = %d, want 2", repo.statuses["p1"].RetryCount)
	}
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	job := newJob("job1", []string{"p1"})
	repo := newFakeRepo(job)
	persistentErr := batcherr.Transient("jellyfin.download_primary", errorf("timeout"))
	processor := newScriptedProcessor(map[string][]poster.Result{
		"p1": {
			{Err: persistentErr}, {Err: persistentErr}, {Err: persistentErr}, {Err: persistentErr},
		},
	})
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 2, 0)

	w.Run(context.Background(), job)

	if repo.job.Status != model.JobFailed {
		t.Errorf("job status = %v, want failed", repo.job.Status)
	}
	if repo.job.FailedPosters != 1 {
		t.Errorf("failedPosters = %d, want 1", repo.job.FailedPosters)
	}
	if repo.statuses["p1"].RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2 (maxRetries)", repo.statuses["p1"].RetryCount)
	}
}

func TestRunPermanentErrorDoesNotRetry(t *testing.T) {
	job := newJob("job1", []string{"p1"})
	repo := newFakeRepo(job)
	processor := newScriptedProcessor(map[string][]poster.Result{
		"p1": {{Err: batcherr.Permanent("jellyfin.get_media", errorf("404"))}},
	})
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 3, 0)

	w.Run(context.Background(), job)

	if repo.statuses["p1"].RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 (permanent errors don't retry)", repo.statuses["p1"].RetryCount)
	}
	if repo.job.Status != model.JobFailed {
		t.Errorf("job status = %v, want failed", repo.job.Status)
	}
}

func TestRunOnAlreadyTerminalJobIsNoOp(t *testing.T) {
	job := newJob("job1", []string{"p1"})
	job.Status = model.JobCompleted
	repo := newFakeRepo(job)
	processor := newScriptedProcessor(nil)
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 3, 0)

	w.Run(context.Background(), job)

	if len(tracker.started) != 0 {
		t.Error("expected StartJob not to be called for an already-terminal job")
	}
}

func TestRunSkipsAlreadyTerminalPostersOnResume(t *testing.T) {
	job := newJob("job1", []string{"p1", "p2"})
	job.CompletedPosters = 1
	repo := newFakeRepo(job)
	now := time.Now()
	repo.statuses["p1"] = &model.PosterStatus{
		JobID: "job1", PosterID: "p1", Status: model.PosterCompleted,
		StartedAt: &now, CompletedAt: &now, OutputPath: "out/p1.jpg",
	}
	processor := newScriptedProcessor(map[string][]poster.Result{
		"p2": {{Success: true, OutputPath: "out/p2.jpg"}},
	})
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 3, 0)

	w.Run(context.Background(), job)

	if processor.calls["p1"] != 0 {
		t.Errorf("expected p1 not to be reprocessed, got %d calls", processor.calls["p1"])
	}
	if repo.job.CompletedPosters != 2 {
		t.Errorf("CompletedPosters = %d, want 2 (1 carried over + 1 newly completed)", repo.job.CompletedPosters)
	}
	if repo.job.Status != model.JobCompleted {
		t.Errorf("job status = %v, want completed", repo.job.Status)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	job := newJob("job1", []string{"p1", "p2"})
	repo := newFakeRepo(job)

	processor := &cancellingProcessor{repo: repo}
	tracker := newFakeTracker()
	w := worker.New(repo, processor, tracker, discardLogger(), 3, 0)

	w.Run(context.Background(), job)

	if repo.job.Status != model.JobCancelled {
		t.Errorf("job status = %v, want cancelled", repo.job.Status)
	}
}

// cancellingProcessor cancels the job via the repository after the
// first poster, simulating a concurrent CancelJob between posters.
type cancellingProcessor struct {
	repo *fakeRepo
	n    int
}

func (p *cancellingProcessor) ProcessPoster(ctx context.Context, jobID, posterID string, badgeTypes []model.BadgeType) poster.Result {
	p.n++
	if p.n == 1 {
		p.repo.UpdateJobStatus(ctx, jobID, model.JobCancelled)
	}
	return poster.Result{Success: true, OutputPath: "out.jpg"}
}

func errorf(msg string) error { return &simpleErr{msg} }

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }
