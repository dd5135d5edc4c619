package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

const taskColumns = `id, payment_id, status, attempts, last_error,
       next_retry_at, locked_at, created_at, updated_at`

type TaskRepository struct {
	q persistence.Executor
}

func NewTaskRepository(q persistence.Executor) *TaskRepository {
	return &TaskRepository{q: q}
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.PaymentTask) error {
	query := `
		INSERT INTO payment_tasks (payment_id, status, attempts, last_error, next_retry_at, locked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		t.PaymentID, t.Status, t.Attempts, t.LastError, t.NextRetryAt, t.LockedAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.PaymentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM payment_tasks WHERE id = $1 FOR UPDATE`
	return scanTask(r.q.QueryRow(ctx, query, id))
}

// ReserveNext claims the oldest eligible task. SKIP LOCKED lets concurrent
// workers poll without blocking each other; a task stuck in processing past
// the timeout is treated as abandoned and becomes eligible again.
func (r *TaskRepository) ReserveNext(ctx context.Context, now time.Time, processingTimeout time.Duration) (*domain.PaymentTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM payment_tasks
		WHERE (
			status = 'new'
			OR (status = 'processing' AND locked_at IS NOT NULL AND locked_at < $1)
		)
		AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	stuckBefore := now.Add(-processingTimeout)
	return scanTask(r.q.QueryRow(ctx, query, stuckBefore, now))
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.PaymentTask) error {
	query := `
		UPDATE payment_tasks
		SET status = $1, attempts = $2, last_error = $3,
		    next_retry_at = $4, locked_at = $5, updated_at = now()
		WHERE id = $6
	`

	tag, err := r.q.Exec(ctx, query,
		t.Status, t.Attempts, t.LastError, t.NextRetryAt, t.LockedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.PaymentTask, error) {
	var t domain.PaymentTask
	err := row.Scan(
		&t.ID, &t.PaymentID, &t.Status, &t.Attempts, &t.LastError,
		&t.NextRetryAt, &t.LockedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan payment task: %w", err)
	}
	return &t, nil
}
