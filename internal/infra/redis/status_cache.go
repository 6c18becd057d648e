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

var _ repository.StatusCache = (*StatusCache)(nil)

// StatusCache keeps rendered job status payloads so the polling endpoint
// rarely touches Postgres. Entries expire on their own; writers invalidate
// on every transition anyway.
type StatusCache struct {
	client *Client
	ttl    time.Duration
}

func NewStatusCache(client *Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) key(jobID string) string {
	return fmt.Sprintf("job_status:%s", jobID)
}

func (c *StatusCache) SetStatus(ctx context.Context, jobID string, payload []byte) error {
	return c.client.Set(ctx, c.key(jobID), payload, c.ttl)
}

func (c *StatusCache) GetStatus(ctx context.Context, jobID string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(jobID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return []byte(data), nil
}

func (c *StatusCache) Invalidate(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, c.key(jobID))
}
