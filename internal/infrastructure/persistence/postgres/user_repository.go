package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

type UserRepository struct {
	q persistence.Executor
}

func NewUserRepository(q persistence.Executor) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) Create(ctx context.Context, balance decimal.Decimal) (*domain.User, error) {
	query := `INSERT INTO users (balance) VALUES ($1) RETURNING id, balance`

	var u domain.User
	if err := r.q.QueryRow(ctx, query, balance).Scan(&u.ID, &u.Balance); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, `SELECT id, balance FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, `SELECT id, balance FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET balance = $1 WHERE id = $2`, balance, id)
	if err != nil {
		return fmt.Errorf("update user balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) get(ctx context.Context, query string, id int64) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, query, id).Scan(&u.ID, &u.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
