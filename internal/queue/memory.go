package queue

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"log/slog"
	"time"
)

// MemoryQueue is a buffered channel backed queue for single process deployments and tests.
type MemoryQueue struct {
	jobs chan Job
}

// NewMemoryQueue creates a queue that holds up to capacity jobs before Enqueue blocks.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan Job, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "enqueue job", slog.String("session_id", job.SessionID))
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (Job, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return job, nil
	case <-timer.C:
		return Job{}, ErrEmpty
	case <-ctx.Done():
		return Job{}, errors.Wrap(ctx.Err(), "dequeue job")
	}
}

// Len returns the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}
