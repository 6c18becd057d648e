package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/ports/repository"
)

var _ repository.JobQueue = (*JobQueue)(nil)

// JobQueue is a Redis list carrying job ids. Producers LPUSH, workers
// block on BRPOP. Postgres remains the source of truth; losing a queue
// entry only delays a job until the stale sweeper re-enqueues it.
type JobQueue struct {
	client *Client
	key    string
}

func NewJobQueue(client *Client, key string) *JobQueue {
	return &JobQueue{client: client, key: key}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.cli.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.cli.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // timeout, queue empty
		}
		return "", fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *JobQueue) Len(ctx context.Context) (int64, error) {
	return q.client.cli.LLen(ctx, q.key).Result()
}
