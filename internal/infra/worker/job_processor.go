package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dwg-boq-service/internal/config"
	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/repository"
	"dwg-boq-service/internal/infra/metrics"
	redisinfra "dwg-boq-service/internal/infra/redis"
)

// Runner executes the extraction pipeline for one claimed job.
type Runner interface {
	Run(ctx context.Context, job *model.Job) (*model.JobResult, error)
}

// JobProcessor drains the queue and drives jobs through the pipeline.
// The Redis list is only a wake-up signal; the database row is the
// source of truth, so a lost message costs at most one dequeue timeout.
type JobProcessor struct {
	repo     repository.JobRepository
	queue    repository.JobQueue
	cache    repository.StatusCache
	locker   redisinfra.Locker
	pipeline Runner
	cfg      config.WorkerConfig
	lockTTL  time.Duration
	log      *zerolog.Logger
}

func NewJobProcessor(
	repo repository.JobRepository,
	queue repository.JobQueue,
	cache repository.StatusCache,
	locker redisinfra.Locker,
	pipeline Runner,
	cfg config.WorkerConfig,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *JobProcessor {
	l := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		repo:     repo,
		queue:    queue,
		cache:    cache,
		locker:   locker,
		pipeline: pipeline,
		cfg:      cfg,
		lockTTL:  lockTTL,
		log:      &l,
	}
}

// Start runs the dequeue loop and hands claims to the pool.
// This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		default:
		}

		// Blocks up to DequeueTimeout. An empty id after the timeout still
		// triggers a claim attempt, which picks up rows whose wake-up
		// message was lost or arrived before a worker was free.
		id, err := p.queue.Dequeue(ctx, p.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Msg("dequeue failed")
			time.Sleep(p.cfg.DequeueTimeout)
			continue
		}
		if id != "" {
			p.log.Debug().Str("job_id", id).Msg("wake-up received")
		}
		_ = pool.Submit(func(ctx context.Context) error {
			p.ProcessOne(ctx)
			return nil
		})
	}
}

// ProcessOne claims the oldest queued job and runs it to a terminal state
// or a scheduled retry. It is a no-op when nothing is queued.
func (p *JobProcessor) ProcessOne(ctx context.Context) {
	job, err := p.repo.ClaimQueued(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("claim failed")
		}
		return
	}
	p.cacheStatus(ctx, job)

	log := p.log.With().Str("job_id", job.ID).Logger()
	log.Info().Int("attempt", job.Retries+1).Msg("processing job")
	start := time.Now()

	result, err := p.runLocked(ctx, job)
	if err != nil {
		if job.Retries < job.MaxRetries {
			p.scheduleRetry(ctx, job, err)
			return
		}
		job.Status = model.JobStatusFailed
		job.LastError = err.Error()
		log.Error().Err(err).Msg("job failed permanently")
	} else {
		job.Status = model.JobStatusDone
		job.LastError = ""
		job.OutputPath = result.OutputPath
		job.ItemsParsed = result.ItemsParsed
		job.UniqueItems = result.UniqueItems
		job.Exceptions = result.Exceptions
	}

	// Final update must land even when the claim context is gone.
	if err := p.repo.Save(context.Background(), repository.NoTX, job); err != nil {
		log.Error().Err(err).Msg("final job update failed")
	}
	p.cacheStatus(context.Background(), job)
	metrics.IncJobProcessed(string(job.Status), time.Since(start))
	log.Info().Str("status", string(job.Status)).Dur("duration", time.Since(start)).Msg("job finished")
}

// runLocked serializes work per job. Directory-mode converters write into
// the job's tmp dir and must never run twice concurrently for one job.
func (p *JobProcessor) runLocked(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	if p.locker == nil {
		return p.pipeline.Run(ctx, job)
	}
	key := "job_lock:" + job.ID
	token, err := p.locker.TryLock(ctx, key, p.lockTTL)
	if err != nil {
		return nil, domain.ErrJobAlreadyClaimed
	}
	defer func() {
		if err := p.locker.Unlock(context.Background(), key, token); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("unlock failed")
		}
	}()
	return p.pipeline.Run(ctx, job)
}

// scheduleRetry re-queues the job after an exponential backoff.
func (p *JobProcessor) scheduleRetry(ctx context.Context, job *model.Job, cause error) {
	job.Retries++
	job.Status = model.JobStatusQueued
	job.LastError = cause.Error()
	if err := p.repo.Save(ctx, repository.NoTX, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("retry update failed")
		return
	}
	p.cacheStatus(ctx, job)
	metrics.IncJobRequeued(1)

	delay := p.cfg.BackoffBase << (job.Retries - 1)
	p.log.Warn().Err(cause).Str("job_id", job.ID).Int("retry", job.Retries).Dur("delay", delay).Msg("job retry scheduled")

	id := job.ID
	time.AfterFunc(delay, func() {
		// Best effort: if the wake-up is lost the claim loop still finds
		// the queued row after a dequeue timeout.
		if err := p.queue.Enqueue(context.Background(), id); err != nil {
			p.log.Warn().Err(err).Str("job_id", id).Msg("retry enqueue failed")
		}
	})
}

func (p *JobProcessor) cacheStatus(ctx context.Context, job *model.Job) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	_ = p.cache.SetStatus(ctx, job.ID, data)
}
