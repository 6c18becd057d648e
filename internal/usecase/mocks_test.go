// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/repository"
)

// memJobRepo is a small in-memory implementation used by unit tests.
type memJobRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Job
	saveErr error // used by tests to simulate save failures
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = time.Now()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memJobRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*model.Job, 0, len(m.store))
	for _, job := range m.store {
		cp := *job
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memJobRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, job := range m.store {
		counts[string(job.Status)]++
	}
	return counts, nil
}

func (m *memJobRepo) ClaimQueued(ctx context.Context) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.Job
	for _, job := range m.store {
		if job.Status != model.JobStatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = model.JobStatusProcessing
	oldest.UpdatedAt = time.Now()
	cp := *oldest
	return &cp, nil
}

func (m *memJobRepo) ListStaleProcessing(ctx context.Context, tx repository.Tx, olderThan time.Time) ([]*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stale []*model.Job
	for _, job := range m.store {
		if job.Status == model.JobStatusProcessing && job.UpdatedAt.Before(olderThan) {
			cp := *job
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// memQueue is an in-memory stand-in for the Redis list.
type memQueue struct {
	mu         sync.Mutex
	ids        []string
	enqueueErr error
}

func newMemQueue() *memQueue { return &memQueue{} }

func (q *memQueue) Enqueue(ctx context.Context, jobID string) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

func (q *memQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ids)), nil
}

// memCache records status writes so tests can assert cache behavior.
type memCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newMemCache() *memCache { return &memCache{store: make(map[string][]byte)} }

func (c *memCache) SetStatus(ctx context.Context, jobID string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[jobID] = append([]byte(nil), data...)
	return nil
}

func (c *memCache) GetStatus(ctx context.Context, jobID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.store[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (c *memCache) Invalidate(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, jobID)
	return nil
}
