// Package queue implements the in-memory priority job queue shared by
// job submission and the dispatcher: jobs are popped
// lowest-priority-number first, ties broken by created_at ascending.
// Built on container/heap, wrapped in a single mutex-guarded queue.
package queue

import (
	"container/heap"
	"sync"

	"maukemana-backend/internal/model"
)

// item is one entry in the underlying heap.
type item struct {
	job   *model.BatchJob
	index int
}

// priorityHeap implements container/heap.Interface. Lower Priority
// values sort first; ties broken by earlier CreatedAt.
type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority < h[j].job.Priority
	}
	return h[i].job.CreatedAt.Before(h[j].job.CreatedAt)
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	n := len(*h)
	it := x.(*item)
	it.index = n
	*h = append(*h, it)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a thread-safe priority queue of pending jobs.
type Queue struct {
	mu   sync.Mutex
	heap priorityHeap
	byID map[string]*item
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{heap: priorityHeap{}, byID: make(map[string]*item)}
}

// Enqueue adds a job to the queue. It satisfies the batch.Queue
// interface (C9's Enqueue collaborator).
func (q *Queue) Enqueue(job *model.BatchJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it := &item{job: job}
	heap.Push(&q.heap, it)
	q.byID[job.ID] = it
}

// Dequeue pops the highest-priority job, or returns (nil, false) if
// the queue is empty.
func (q *Queue) Dequeue() (*model.BatchJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil, false
	}
	it := heap.Pop(&q.heap).(*item)
	delete(q.byID, it.job.ID)
	return it.job, true
}

// Remove drops a job from the queue before it is dequeued, used when
// an operator cancels a still-queued job. Reports whether the job was
// present.
func (q *Queue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byID[jobID]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, it.index)
	delete(q.byID, jobID)
	return true
}

// Len reports the number of jobs currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
