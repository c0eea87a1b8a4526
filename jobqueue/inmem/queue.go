// Package inmem provides an in-process job queue for tests and local runs.
// Production deployments substitute a dispatcher backed by a real broker;
// the bridge only depends on the jobqueue.Dispatcher contract.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/turbobackend/mcpbridge/jobqueue"
)

const defaultCapacity = 64

// Job is one dequeued unit of work.
type Job struct {
	Queue    string
	Message  jobqueue.Message
	StreamID string
}

// Queue holds one buffered channel per queue name.
type Queue struct {
	mu       sync.Mutex
	capacity int
	queues   map[string]chan Job
}

var _ jobqueue.Dispatcher = (*Queue)(nil)

func New() *Queue {
	return NewWithCapacity(defaultCapacity)
}

func NewWithCapacity(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Queue{
		capacity: capacity,
		queues:   make(map[string]chan Job),
	}
}

// Enqueue appends one job without blocking. A full queue fails with
// jobqueue.ErrQueueUnavailable so the caller can surface a terminal error.
func (q *Queue) Enqueue(ctx context.Context, queueName string, message jobqueue.Message, streamID string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if queueName == "" {
		return fmt.Errorf("%w: queue name is empty", jobqueue.ErrQueueUnavailable)
	}

	job := Job{
		Queue:    queueName,
		Message:  message,
		StreamID: streamID,
	}

	select {
	case q.channel(queueName) <- job:
		return nil
	default:
		return fmt.Errorf("%w: queue %q is full", jobqueue.ErrQueueUnavailable, queueName)
	}
}

// Dequeue blocks until a job is available on queueName or ctx ends.
func (q *Queue) Dequeue(ctx context.Context, queueName string) (Job, error) {
	select {
	case job := <-q.channel(queueName):
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *Queue) channel(queueName string) chan Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.queues[queueName]
	if !ok {
		ch = make(chan Job, q.capacity)
		q.queues[queueName] = ch
	}
	return ch
}
