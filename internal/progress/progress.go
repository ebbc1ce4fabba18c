// Package progress aggregates per-poster status changes into
// job-level progress and emits one event per PosterState transition
// for the WebSocket hub to fan out.
package progress

import (
	"sync"
	"time"

	"maukemana-backend/internal/model"
)

// Event is emitted on every PosterStatus transition. Consumers are
// expected to be idempotent on (PosterID, Status); duplicate
// suppression is not performed here.
type Event struct {
	JobID     string          `json:"job_id"`
	PosterID  string          `json:"poster_id"`
	Status    model.PosterState `json:"status"`
	Counts    Snapshot        `json:"counts"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// Snapshot is the aggregate progress for one job at a point in time.
type Snapshot struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Percent   float64  `json:"percent"`
	ETA       *time.Time `json:"eta,omitempty"`
}

// Sink receives every emitted event. The WebSocket hub is the
// production implementation; tests can supply a recording fake.
type Sink interface {
	Publish(event Event)
}

// jobState tracks the running counters for one job.
type jobState struct {
	total     int
	completed int
	failed    int
	startedAt time.Time
}

// Tracker is the Progress Tracker. It is safe for concurrent use by
// multiple Batch Workers, one per job id.
type Tracker struct {
	sink Sink
	now  func() time.Time

	mu    sync.Mutex
	state map[string]*jobState
}

// New creates a Tracker that publishes events to sink.
func New(sink Sink) *Tracker {
	return &Tracker{sink: sink, now: time.Now, state: make(map[string]*jobState)}
}

// StartJob registers a job's poster total so subsequent UpdatePoster
// calls can compute an accurate percent/ETA. Safe to call more than
// once (e.g. on worker restart); it is a no-op after the first call
// for a given job id.
func (t *Tracker) StartJob(jobID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.state[jobID]; ok {
		return
	}
	t.state[jobID] = &jobState{total: total, startedAt: t.now()}
}

// UpdatePoster records one PosterStatus transition, updates the job's
// running counters, and emits exactly one Event.
//
// errMsg is copied into the event's Error field as given, whatever the
// status.
func (t *Tracker) UpdatePoster(jobID, posterID string, status model.PosterState, errMsg string) Event {
	t.mu.Lock()
	st, ok := t.state[jobID]
	if !ok {
		st = &jobState{startedAt: t.now()}
		t.state[jobID] = st
	}
	switch status {
	case model.PosterCompleted:
		st.completed++
	case model.PosterFailed:
		st.failed++
	}
	snapshot := t.snapshotLocked(st)
	t.mu.Unlock()

	event := Event{
		JobID:     jobID,
		PosterID:  posterID,
		Status:    status,
		Counts:    snapshot,
		Timestamp: t.now(),
		Error:     errMsg,
	}
	if t.sink != nil {
		t.sink.Publish(event)
	}
	return event
}

// Progress returns the current aggregate snapshot for a job.
func (t *Tracker) Progress(jobID string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.state[jobID]
	if !ok {
		return Snapshot{}
	}
	return t.snapshotLocked(st)
}

// EndJob drops a job's in-memory counters once it has reached a
// terminal status and the final event has been delivered.
func (t *Tracker) EndJob(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, jobID)
}

func (t *Tracker) snapshotLocked(st *jobState) Snapshot {
	snap := Snapshot{Total: st.total, Completed: st.completed, Failed: st.failed}
	done := st.completed + st.failed
	if st.total > 0 {
		snap.Percent = float64(done) / float64(st.total) * 100
	}
	if done > 0 && done < st.total {
		elapsed := t.now().Sub(st.startedAt)
		perItem := elapsed / time.Duration(done)
		remaining := perItem * time.Duration(st.total-done)
		eta := t.now().Add(remaining)
		snap.ETA = &eta
	}
	return snap
}
