package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/repository"
	"dwg-boq-service/internal/infra/logging"
	"dwg-boq-service/internal/infra/metrics"
	"dwg-boq-service/internal/infra/storage"
)

// JobUseCase handles the job lifecycle as seen from the API: submission,
// status lookups and result retrieval.
type JobUseCase struct {
	repo       repository.JobRepository
	queue      repository.JobQueue
	cache      repository.StatusCache
	store      *storage.JobStore
	maxRetries int
	log        *zerolog.Logger
}

func NewJobUseCase(
	repo repository.JobRepository,
	queue repository.JobQueue,
	cache repository.StatusCache,
	store *storage.JobStore,
	maxRetries int,
	logger *zerolog.Logger,
) *JobUseCase {
	l := logger.With().Str("component", "JobUseCase").Logger()
	return &JobUseCase{
		repo:       repo,
		queue:      queue,
		cache:      cache,
		store:      store,
		maxRetries: maxRetries,
		log:        &l,
	}
}

// Submit stores the uploaded drawing, persists a queued job and wakes the
// workers. Only .dwg and .dxf uploads are accepted.
func (uc *JobUseCase) Submit(ctx context.Context, filename string, file io.Reader) (*model.Job, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".dwg" && ext != ".dxf" {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}

	job := &model.Job{
		ID:         uuid.NewString(),
		Status:     model.JobStatusQueued,
		Filename:   filepath.Base(filename),
		MaxRetries: uc.maxRetries,
	}

	path, size, err := uc.store.SaveUpload(job.ID, job.Filename, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	job.InputPath = path
	metrics.ObserveUpload(size)

	if err := uc.repo.Save(ctx, repository.NoTX, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	if err := uc.queue.Enqueue(ctx, job.ID); err != nil {
		// Without a broker the job would sit queued forever; surface the
		// outage to the client instead.
		job.Status = model.JobStatusFailed
		job.LastError = "job queue unavailable at submission"
		if saveErr := uc.repo.Save(ctx, repository.NoTX, job); saveErr != nil {
			uc.log.Error().Err(saveErr).Str("job_id", job.ID).Msg("could not mark job failed after enqueue error")
		}
		return nil, domain.ErrQueueUnavailable
	}

	metrics.IncJobSubmitted()
	logging.With(ctx, uc.log).Info().
		Str("job_id", job.ID).Str("filename", job.Filename).Int64("bytes", size).Msg("job submitted")
	return job, nil
}

// Get returns the job, serving repeated polls from the status cache.
func (uc *JobUseCase) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	if uc.cache != nil {
		if data, err := uc.cache.GetStatus(ctx, id); err == nil {
			var job model.Job
			if err := json.Unmarshal(data, &job); err == nil {
				return &job, nil
			}
		}
	}

	job, err := uc.repo.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	uc.cacheJob(ctx, job)
	return job, nil
}

// Result resolves the workbook path for a finished job.
func (uc *JobUseCase) Result(ctx context.Context, id string) (path string, downloadName string, err error) {
	job, err := uc.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	if job.Status != model.JobStatusDone || job.OutputPath == "" {
		return "", "", domain.ErrOutputNotReady
	}
	if _, err := uc.store.OutputPath(job.ID); err != nil {
		return "", "", domain.ErrOutputNotReady
	}
	return job.OutputPath, fmt.Sprintf("BOQ_%s.xlsx", job.ID), nil
}

// List returns jobs ordered newest first.
func (uc *JobUseCase) List(ctx context.Context, offset, limit int) ([]*model.Job, error) {
	return uc.repo.List(ctx, repository.NoTX, offset, limit)
}

func (uc *JobUseCase) cacheJob(ctx context.Context, job *model.Job) {
	if uc.cache == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := uc.cache.SetStatus(ctx, job.ID, data); err != nil {
		uc.log.Debug().Err(err).Str("job_id", job.ID).Msg("status cache write failed")
	}
}
