package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dwg-boq-service/internal/config"
	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/repository"
)

type stubRepo struct {
	mu    sync.Mutex
	store map[string]*model.Job
}

func newStubRepo(jobs ...*model.Job) *stubRepo {
	r := &stubRepo{store: make(map[string]*model.Job)}
	for _, job := range jobs {
		cp := *job
		r.store[job.ID] = &cp
	}
	return r
}

func (r *stubRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.UpdatedAt = time.Now()
	cp := *job
	r.store[job.ID] = &cp
	return nil
}

func (r *stubRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *stubRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Job, error) {
	return nil, nil
}

func (r *stubRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	return nil, nil
}

func (r *stubRepo) ClaimQueued(ctx context.Context) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.store {
		if job.Status == model.JobStatusQueued {
			job.Status = model.JobStatusProcessing
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubRepo) ListStaleProcessing(ctx context.Context, tx repository.Tx, olderThan time.Time) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*model.Job
	for _, job := range r.store {
		if job.Status == model.JobStatusProcessing && job.UpdatedAt.Before(olderThan) {
			cp := *job
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

type stubQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *stubQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *stubQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

func (q *stubQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ids)), nil
}

type stubCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newStubCache() *stubCache { return &stubCache{store: make(map[string][]byte)} }

func (c *stubCache) SetStatus(ctx context.Context, jobID string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[jobID] = append([]byte(nil), payload...)
	return nil
}

func (c *stubCache) GetStatus(ctx context.Context, jobID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.store[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (c *stubCache) Invalidate(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, jobID)
	return nil
}

type stubRunner struct {
	result *model.JobResult
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestProcessor(repo *stubRepo, queue *stubQueue, runner Runner) *JobProcessor {
	logger := zerolog.Nop()
	cfg := config.WorkerConfig{
		Count:          1,
		MaxRetries:     2,
		BackoffBase:    time.Millisecond,
		DequeueTimeout: 10 * time.Millisecond,
	}
	return NewJobProcessor(repo, queue, nil, nil, runner, cfg, time.Minute, &logger)
}

func TestJobProcessor_ProcessOne_Success(t *testing.T) {
	t.Parallel()

	repo := newStubRepo(&model.Job{ID: "j1", Status: model.JobStatusQueued, MaxRetries: 2})
	runner := &stubRunner{result: &model.JobResult{
		OutputPath:  "/data/j1/out/BOQ_Output.xlsx",
		ItemsParsed: 12,
		UniqueItems: 4,
		Exceptions:  1,
	}}
	p := newTestProcessor(repo, &stubQueue{}, runner)

	p.ProcessOne(context.Background())

	job, err := repo.FindByID(context.Background(), nil, "j1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if job.Status != model.JobStatusDone {
		t.Fatalf("expected done, got %s", job.Status)
	}
	if job.OutputPath != "/data/j1/out/BOQ_Output.xlsx" {
		t.Fatalf("unexpected output path %q", job.OutputPath)
	}
	if job.ItemsParsed != 12 || job.UniqueItems != 4 || job.Exceptions != 1 {
		t.Fatalf("result summary not persisted: %+v", job)
	}
	if runner.calls != 1 {
		t.Fatalf("expected 1 pipeline run, got %d", runner.calls)
	}
}

func TestJobProcessor_ProcessOne_RetriesThenRequeues(t *testing.T) {
	t.Parallel()

	repo := newStubRepo(&model.Job{ID: "j1", Status: model.JobStatusQueued, MaxRetries: 2})
	queue := &stubQueue{}
	runner := &stubRunner{err: errors.New("converter crashed")}
	p := newTestProcessor(repo, queue, runner)

	p.ProcessOne(context.Background())

	job, err := repo.FindByID(context.Background(), nil, "j1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if job.Status != model.JobStatusQueued {
		t.Fatalf("expected requeued job, got %s", job.Status)
	}
	if job.Retries != 1 {
		t.Fatalf("expected 1 retry, got %d", job.Retries)
	}
	if job.LastError == "" {
		t.Fatalf("expected last error to be recorded")
	}

	// the delayed wake-up lands on the queue
	deadline := time.Now().Add(time.Second)
	for {
		if n, _ := queue.Len(context.Background()); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("retry enqueue never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJobProcessor_ProcessOne_FailsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	repo := newStubRepo(&model.Job{ID: "j1", Status: model.JobStatusQueued, Retries: 2, MaxRetries: 2})
	runner := &stubRunner{err: errors.New("still broken")}
	p := newTestProcessor(repo, &stubQueue{}, runner)

	p.ProcessOne(context.Background())

	job, err := repo.FindByID(context.Background(), nil, "j1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.LastError != "still broken" {
		t.Fatalf("unexpected last error %q", job.LastError)
	}
}

func TestJobProcessor_ProcessOne_EmptyQueueIsNoop(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	p := newTestProcessor(newStubRepo(), &stubQueue{}, runner)
	p.ProcessOne(context.Background())
	if runner.calls != 0 {
		t.Fatalf("pipeline must not run without a claim")
	}
}

func TestSweeper_RequeuesStaleProcessing(t *testing.T) {
	t.Parallel()

	old := time.Now().Add(-time.Hour)
	repo := newStubRepo(
		&model.Job{ID: "stale", Status: model.JobStatusProcessing, MaxRetries: 2},
		&model.Job{ID: "spent", Status: model.JobStatusProcessing, Retries: 2, MaxRetries: 2},
	)
	repo.store["stale"].UpdatedAt = old
	repo.store["spent"].UpdatedAt = old

	queue := &stubQueue{}
	logger := zerolog.Nop()
	s := NewSweeper(repo, queue, nil, config.WorkerConfig{StaleDeadline: time.Minute, RequeueInterval: time.Minute}, &logger)

	s.SweepOnce(context.Background())

	stale, _ := repo.FindByID(context.Background(), nil, "stale")
	if stale.Status != model.JobStatusQueued || stale.Retries != 1 {
		t.Fatalf("expected stale job requeued with retry, got %s retries=%d", stale.Status, stale.Retries)
	}
	spent, _ := repo.FindByID(context.Background(), nil, "spent")
	if spent.Status != model.JobStatusFailed {
		t.Fatalf("expected spent job failed, got %s", spent.Status)
	}
	if n, _ := queue.Len(context.Background()); n != 1 {
		t.Fatalf("expected exactly one requeue, got %d", n)
	}
}

func TestSweeper_DropsStaleStatusCacheEntry(t *testing.T) {
	t.Parallel()

	old := time.Now().Add(-time.Hour)
	repo := newStubRepo(
		&model.Job{ID: "stale", Status: model.JobStatusProcessing, MaxRetries: 2},
		&model.Job{ID: "spent", Status: model.JobStatusProcessing, Retries: 2, MaxRetries: 2},
	)
	repo.store["stale"].UpdatedAt = old
	repo.store["spent"].UpdatedAt = old

	// both jobs were cached as processing by the worker that died
	cache := newStubCache()
	for _, id := range []string{"stale", "spent"} {
		if err := cache.SetStatus(context.Background(), id, []byte(`{"Status":"processing"}`)); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}

	logger := zerolog.Nop()
	s := NewSweeper(repo, &stubQueue{}, cache, config.WorkerConfig{StaleDeadline: time.Minute, RequeueInterval: time.Minute}, &logger)

	s.SweepOnce(context.Background())

	for _, id := range []string{"stale", "spent"} {
		if _, err := cache.GetStatus(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected cached status for %q to be dropped, got err=%v", id, err)
		}
	}
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	t.Parallel()

	logger := zerolog.Nop()
	pool := NewPool(2, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	done := make(chan struct{})
	if err := pool.Submit(func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task never ran")
	}
	cancel()
	pool.Stop()
}
