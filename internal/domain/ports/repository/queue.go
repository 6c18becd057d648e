package repository

import (
	"context"
	"time"
)

// JobQueue is the broker that wakes workers up. Postgres stays the source
// of truth; the queue only carries job ids.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue blocks up to timeout for the next job id. Returns ("", nil)
	// when the timeout elapses with an empty queue.
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)

	Len(ctx context.Context) (int64, error)
}

// StatusCache keeps a short-lived copy of job status payloads so the
// polling endpoint does not hit Postgres on every request.
type StatusCache interface {
	SetStatus(ctx context.Context, jobID string, payload []byte) error
	GetStatus(ctx context.Context, jobID string) ([]byte, error)
	Invalidate(ctx context.Context, jobID string) error
}
