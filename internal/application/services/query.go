package services

import (
	"context"
	"errors"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
)

type QueryService struct {
	store application.Store
}

func NewQueryService(store application.Store) *QueryService {
	return &QueryService{store: store}
}

// GetPayment returns a payment with its transaction. The transaction is
// nil when the row is missing, which the status endpoint tolerates.
func (s *QueryService) GetPayment(ctx context.Context, id int64) (*domain.Payment, *domain.Transaction, error) {
	r := s.store.Repos()

	payment, err := r.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, nil, application.NewPaymentNotFoundError(id)
		}
		return nil, nil, application.NewInternalError(err)
	}

	txn, err := r.Transactions.GetByPaymentID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, nil, application.NewInternalError(err)
		}
		txn = nil
	}

	return payment, txn, nil
}

func (s *QueryService) ListDLQ(ctx context.Context, limit, offset int) ([]*domain.DLQEntry, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.store.Repos().DLQ.List(ctx, limit, offset)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return entries, nil
}
