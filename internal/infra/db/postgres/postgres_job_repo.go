package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

type JobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *JobRepo {
	return &JobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, status, filename, input_path, output_path, retries, max_retries,
  last_error, items_parsed, unique_items, exceptions, created_at, updated_at`

func (r *JobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (id, status, filename, input_path, output_path, retries, max_retries,
  last_error, items_parsed, unique_items, exceptions, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  output_path = EXCLUDED.output_path,
  retries = EXCLUDED.retries,
  last_error = EXCLUDED.last_error,
  items_parsed = EXCLUDED.items_parsed,
  unique_items = EXCLUDED.unique_items,
  exceptions = EXCLUDED.exceptions,
  updated_at = EXCLUDED.updated_at;`

	ex, err := pickExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		job.ID, job.Status, job.Filename, job.InputPath, job.OutputPath,
		job.Retries, job.MaxRetries, job.LastError,
		job.ItemsParsed, job.UniqueItems, job.Exceptions,
		job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *JobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	ex, err := pickExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1;`, id)
	return scanJob(row)
}

func (r *JobRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Job, error) {
	ex, err := pickExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC OFFSET $1 LIMIT $2;`,
		offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	ex, err := pickExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ClaimQueued atomically takes the oldest queued job and marks it
// processing. FOR UPDATE SKIP LOCKED keeps concurrent workers from
// claiming the same row.
func (r *JobRepo) ClaimQueued(ctx context.Context) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := pickExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		row := ex.QueryRow(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE status = 'queued'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`)

		claimed, err := scanJob(row)
		if err != nil {
			return err
		}
		claimed.Status = model.JobStatusProcessing
		if err := r.Save(ctx, tx, claimed); err != nil {
			return err
		}
		job = claimed
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *JobRepo) ListStaleProcessing(ctx context.Context, tx repository.Tx, olderThan time.Time) ([]*model.Job, error) {
	ex, err := pickExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'processing' AND updated_at < $1 ORDER BY updated_at;`,
		olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var job model.Job
	var status string
	err := row.Scan(
		&job.ID, &status, &job.Filename, &job.InputPath, &job.OutputPath,
		&job.Retries, &job.MaxRetries, &job.LastError,
		&job.ItemsParsed, &job.UniqueItems, &job.Exceptions,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.JobStatus(status)
	return &job, nil
}
