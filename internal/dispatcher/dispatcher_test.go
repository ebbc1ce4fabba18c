package dispatcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"maukemana-backend/internal/dispatcher"
	"maukemana-backend/internal/model"
)

type noopLog struct{}

func (noopLog) Error(msg string, args ...any) {}
func (noopLog) Info(msg string, args ...any)  {}
func (noopLog) Debug(msg string, args ...any) {}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*model.BatchJob
}

func newFakeQueue(jobs ...*model.BatchJob) *fakeQueue {
	return &fakeQueue{jobs: jobs}
}

func (q *fakeQueue) Dequeue() (*model.BatchJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

func (q *fakeQueue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.jobs {
		if j.ID == jobID {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return true
		}
	}
	return false
}

type recordingWorker struct {
	mu  sync.Mutex
	ran []string
	// block, if non-nil, is closed to let a running job finish.
	block chan struct{}
}

func (w *recordingWorker) Run(ctx context.Context, job *model.BatchJob) {
	w.mu.Lock()
	w.ran = append(w.ran, job.ID)
	w.mu.Unlock()

	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
		}
	}
}

func (w *recordingWorker) ranJobs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.ran))
	copy(out, w.ran)
	return out
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	queue := newFakeQueue(&model.BatchJob{ID: "job1"}, &model.BatchJob{ID: "job2"})
	worker := &recordingWorker{}
	d := dispatcher.New(queue, worker, noopLog{}, 2)

	d.Start()
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(worker.ranJobs()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ran := worker.ranJobs()
	if len(ran) != 2 {
		t.Fatalf("expected 2 jobs run, got %d: %v", len(ran), ran)
	}
}

func TestCancelJobOnNonRunningJobReturnsFalse(t *testing.T) {
	queue := newFakeQueue()
	worker := &recordingWorker{}
	d := dispatcher.New(queue, worker, noopLog{}, 1)
	d.Start()
	defer d.Stop()

	if d.CancelJob("never-ran") {
		t.Error("CancelJob() on a job never dispatched = true, want false")
	}
}

func TestCancelJobSignalsRunningJob(t *testing.T) {
	block := make(chan struct{})
	queue := newFakeQueue(&model.BatchJob{ID: "job1"})
	worker := &recordingWorker{block: block}
	d := dispatcher.New(queue, worker, noopLog{}, 1)
	d.Start()
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(worker.ranJobs()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if len(worker.ranJobs()) == 0 {
		t.Fatal("job never started running")
	}

	if !d.CancelJob("job1") {
		t.Error("CancelJob() on a running job = false, want true")
	}
}

func TestNewDefaultsMaxConcurrent(t *testing.T) {
	d := dispatcher.New(newFakeQueue(), &recordingWorker{}, noopLog{}, 0)
	d.Start()
	d.Stop()
}
