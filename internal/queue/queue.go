// Package queue carries "score this session" jobs from the interview handoff to the scoring worker.
package queue

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"time"
)

// ErrEmpty is returned by Dequeue when no job arrived before the wait timed out.
var ErrEmpty = errors.NewSentinel("queue empty")

// Job asks the worker to score one completed session.
type Job struct {
	SessionID  string    `json:"session_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempt    int       `json:"attempt"`
}

// Queue is a FIFO of scoring jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks for at most wait and returns ErrEmpty if nothing arrived.
	Dequeue(ctx context.Context, wait time.Duration) (Job, error)
}
