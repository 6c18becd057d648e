package usecase

import (
	"context"

	"dwg-boq-service/internal/domain/ports/repository"
)

// StatsUseCase aggregates operational figures for the admin API.
type StatsUseCase struct {
	repo  repository.JobRepository
	queue repository.JobQueue
}

func NewStatsUseCase(repo repository.JobRepository, queue repository.JobQueue) *StatsUseCase {
	return &StatsUseCase{repo: repo, queue: queue}
}

// Totals returns per-status job counts and the current broker backlog.
func (uc *StatsUseCase) Totals(ctx context.Context) (byStatus map[string]int, queueDepth int64, err error) {
	byStatus, err = uc.repo.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, 0, err
	}
	queueDepth, err = uc.queue.Len(ctx)
	if err != nil {
		// Broker stats are best-effort; the DB figures are still useful.
		queueDepth = -1
		err = nil
	}
	return byStatus, queueDepth, nil
}
