// Package dispatcher pulls queued jobs in priority order and hands
// each to a worker, bounding the number of jobs running concurrently
// to MAX_CONCURRENT_JOBS and supporting cooperative suspend/resume and
// cancellation. The pool shape is a context-cancellable watcher loop
// plus a panic-recovering worker pool coordinated by a WaitGroup.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"maukemana-backend/internal/model"
)

// Queue is the subset of the job queue the dispatcher pulls from.
type Queue interface {
	Dequeue() (*model.BatchJob, bool)
	Remove(jobID string) bool
}

// Worker runs one job to completion (or cancellation/pause). It is
// satisfied by *worker.Worker.
type Worker interface {
	Run(ctx context.Context, job *model.BatchJob)
}

// Logger is the minimal structured-logging surface the dispatcher
// needs, satisfied by *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Dispatcher pulls jobs off the queue and runs them through a bounded
// worker pool.
type Dispatcher struct {
	queue  Queue
	worker Worker
	log    Logger

	maxConcurrent int
	pollInterval  time.Duration

	mu        sync.Mutex
	cancels   map[string]context.CancelFunc
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Dispatcher bounded to maxConcurrent simultaneous jobs.
func New(queue Queue, worker Worker, log Logger, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Dispatcher{
		queue:         queue,
		worker:        worker,
		log:           log,
		maxConcurrent: maxConcurrent,
		pollInterval:  500 * time.Millisecond,
		cancels:       make(map[string]context.CancelFunc),
	}
}

// safeGo launches fn in a goroutine tracked by the dispatcher's
// WaitGroup, recovering and logging any panic instead of crashing the
// process.
func (d *Dispatcher) safeGo(name string, fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("dispatcher: recovered from panic",
					"goroutine", name, "panic", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// Start launches the bounded pool of pull loops. Safe to call once;
// call Stop to shut down.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	for i := 0; i < d.maxConcurrent; i++ {
		name := fmt.Sprintf("dispatcher-slot-%d", i)
		d.safeGo(name, func() { d.pullLoop(ctx) })
	}

	d.log.Info("dispatcher started", "max_concurrent", d.maxConcurrent)
}

// Stop cancels every in-flight job and waits for all pull loops to
// exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

// CancelJob signals cancellation for one running job, if it is
// currently dispatched. Returns false if the job isn't running here
// (it may still be sitting in the queue — callers should also try
// Queue.Remove for that case).
func (d *Dispatcher) CancelJob(jobID string) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[jobID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (d *Dispatcher) pullLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok := d.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.pollInterval):
				continue
			}
		}

		d.runJob(ctx, job)
	}
}

func (d *Dispatcher) runJob(parent context.Context, job *model.BatchJob) {
	jobCtx, cancel := context.WithCancel(parent)
	d.mu.Lock()
	d.cancels[job.ID] = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.cancels, job.ID)
		d.mu.Unlock()
		cancel()
	}()

	d.log.Debug("dispatcher: running job", "job_id", job.ID, "priority", job.Priority)
	d.worker.Run(jobCtx, job)
}
