package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

type DLQRepository struct {
	q persistence.Executor
}

func NewDLQRepository(q persistence.Executor) *DLQRepository {
	return &DLQRepository{q: q}
}

// Insert appends a DLQ row. The table is unique on payment_id; a second
// terminal transition for the same payment is a no-op.
func (r *DLQRepository) Insert(ctx context.Context, e *domain.DLQEntry) (bool, error) {
	query := `
		INSERT INTO payment_dlq (payment_id, user_id, amount, commission, payment_type, error, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payment_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query,
		e.PaymentID, e.UserID, e.Amount, e.Commission, e.PaymentType, e.Error, e.Attempts,
	)
	if err != nil {
		return false, fmt.Errorf("insert dlq entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *DLQRepository) List(ctx context.Context, limit, offset int) ([]*domain.DLQEntry, error) {
	query := `
		SELECT id, payment_id, user_id, amount, commission, payment_type, error, attempts, created_at
		FROM payment_dlq
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query dlq entries: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.DLQEntry, error) {
		var e domain.DLQEntry
		err := row.Scan(
			&e.ID, &e.PaymentID, &e.UserID, &e.Amount, &e.Commission,
			&e.PaymentType, &e.Error, &e.Attempts, &e.CreatedAt,
		)
		return &e, err
	})
}
