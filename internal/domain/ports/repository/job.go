package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"

	"dwg-boq-service/internal/domain/model"
)

// Tx is an opaque transaction handle passed through repository calls.
// Concrete repositories type-assert it to their driver's transaction type.
// Passing nil (or NoTX) executes against the pool directly.
type Tx = any

// NoTX signals that the call should run outside any transaction.
var NoTX Tx = nil

// JobRepository persists conversion jobs.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.Job, error)
	CountByStatus(ctx context.Context, tx Tx) (map[string]int, error)

	// ClaimQueued atomically fetches the oldest queued job and marks it
	// processing, so concurrent workers never claim the same job.
	ClaimQueued(ctx context.Context) (*model.Job, error)

	// ListStaleProcessing returns jobs that have been processing longer
	// than the deadline, for crash recovery.
	ListStaleProcessing(ctx context.Context, tx Tx, olderThan time.Time) ([]*model.Job, error)
}

// TransactionManager runs a function inside a database transaction,
// committing on nil and rolling back on error.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
