package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"dwg-boq-service/internal/config"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/repository"
	"dwg-boq-service/internal/infra/metrics"
)

// Sweeper returns jobs stuck in processing (crashed worker, lost lock)
// back to the queue so another worker can pick them up.
type Sweeper struct {
	repo  repository.JobRepository
	queue repository.JobQueue
	cache repository.StatusCache
	cfg   config.WorkerConfig
	log   *zerolog.Logger
}

func NewSweeper(repo repository.JobRepository, queue repository.JobQueue, cache repository.StatusCache, cfg config.WorkerConfig, logger *zerolog.Logger) *Sweeper {
	l := logger.With().Str("component", "Sweeper").Logger()
	return &Sweeper{repo: repo, queue: queue, cache: cache, cfg: cfg, log: &l}
}

// Start runs the sweep loop. This should be run in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RequeueInterval)
	defer ticker.Stop()
	s.log.Info().Dur("interval", s.cfg.RequeueInterval).Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce requeues every processing job untouched for longer than the
// stale deadline. A job past its retry budget is marked failed instead.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.StaleDeadline)
	stale, err := s.repo.ListStaleProcessing(ctx, repository.NoTX, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("stale scan failed")
		return
	}
	if len(stale) == 0 {
		return
	}

	requeued := 0
	for _, job := range stale {
		if job.Retries >= job.MaxRetries {
			job.Status = model.JobStatusFailed
			job.LastError = "abandoned after worker loss"
		} else {
			job.Retries++
			job.Status = model.JobStatusQueued
			job.LastError = "requeued after worker loss"
		}
		if err := s.repo.Save(ctx, repository.NoTX, job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("stale job update failed")
			continue
		}
		// The dead worker left a "processing" payload in the status cache;
		// drop it so polls see the new row instead.
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, job.ID); err != nil {
				s.log.Warn().Err(err).Str("job_id", job.ID).Msg("status cache invalidation failed")
			}
		}
		if job.Status == model.JobStatusQueued {
			if err := s.queue.Enqueue(ctx, job.ID); err != nil {
				s.log.Warn().Err(err).Str("job_id", job.ID).Msg("stale requeue enqueue failed")
			}
			requeued++
		}
		s.log.Warn().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("stale job swept")
	}
	if requeued > 0 {
		metrics.IncJobRequeued(requeued)
	}
}
