package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

const paymentColumns = `id, user_id, amount, commission, status, idempotency_key,
       attempts, last_error, next_retry_at, locked_at, created_at, updated_at`

type PaymentRepository struct {
	q persistence.Executor
}

func NewPaymentRepository(q persistence.Executor) *PaymentRepository {
	return &PaymentRepository{q: q}
}

// Create inserts the payment and fills ID, CreatedAt and UpdatedAt.
// A collision on (user_id, idempotency_key) maps to
// domain.ErrDuplicateIdempotencyKey.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (user_id, amount, commission, status, idempotency_key,
		                      attempts, last_error, next_retry_at, locked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		p.UserID, p.Amount, p.Commission, p.Status, p.IdempotencyKey,
		p.Attempts, p.LastError, p.NextRetryAt, p.LockedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRow(ctx, query, id))
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(r.q.QueryRow(ctx, query, id))
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 AND idempotency_key = $2`
	return scanPayment(r.q.QueryRow(ctx, query, userID, key))
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, attempts = $2, last_error = $3,
		    next_retry_at = $4, locked_at = $5, updated_at = now()
		WHERE id = $6
	`

	tag, err := r.q.Exec(ctx, query,
		p.Status, p.Attempts, p.LastError, p.NextRetryAt, p.LockedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Commission, &p.Status, &p.IdempotencyKey,
		&p.Attempts, &p.LastError, &p.NextRetryAt, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}
