package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

type TransactionRepository struct {
	q persistence.Executor
}

func NewTransactionRepository(q persistence.Executor) *TransactionRepository {
	return &TransactionRepository{q: q}
}

func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, payment_id, amount, commission, type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		t.UserID, t.PaymentID, t.Amount, t.Commission, t.Type, t.Status,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, payment_id, amount, commission, type, status
		FROM transactions WHERE payment_id = $1
	`
	return scanTransaction(r.q.QueryRow(ctx, query, paymentID))
}

func (r *TransactionRepository) GetByPaymentIDForUpdate(ctx context.Context, paymentID int64) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, payment_id, amount, commission, type, status
		FROM transactions WHERE payment_id = $1
		FOR UPDATE
	`
	return scanTransaction(r.q.QueryRow(ctx, query, paymentID))
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.PaymentID, &t.Amount, &t.Commission, &t.Type, &t.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}
