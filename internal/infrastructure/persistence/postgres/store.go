package postgres

import (
	"context"
	"fmt"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

// Store implements application.Store over a pgx pool. WithTx rebinds every
// repository to a single transaction so row locks taken inside fn hold
// until commit.
type Store struct {
	db *persistence.DB
}

func NewStore(db *persistence.DB) *Store {
	return &Store{db: db}
}

var _ application.Store = (*Store)(nil)

func (s *Store) Repos() application.Repositories {
	return bindRepos(s.db.Pool)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r application.Repositories) error) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, bindRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func bindRepos(q persistence.Executor) application.Repositories {
	return application.Repositories{
		Users:        NewUserRepository(q),
		Payments:     NewPaymentRepository(q),
		Transactions: NewTransactionRepository(q),
		Tasks:        NewTaskRepository(q),
		DLQ:          NewDLQRepository(q),
	}
}
