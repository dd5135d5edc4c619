package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
)

type WithdrawService struct {
	store   application.Store
	metrics metrics.Sink
	feeRate decimal.Decimal
	logger  *slog.Logger
}

func NewWithdrawService(store application.Store, sink metrics.Sink, feeRate decimal.Decimal, logger *slog.Logger) *WithdrawService {
	return &WithdrawService{
		store:   store,
		metrics: sink,
		feeRate: feeRate,
		logger:  logger,
	}
}

// Withdraw accepts a withdrawal request. The user row is locked for the
// balance pre-check; a shortfall persists a failed payment (no task) and
// surfaces as insufficient_funds. The debit itself happens later under the
// same lock discipline in the worker.
func (s *WithdrawService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, idempotencyKey string) (*domain.Payment, error) {
	s.metrics.Inc(metrics.WithdrawRequestsTotal)

	payment, err := runIntake(ctx, s.store, s.metrics, s.feeRate, intakeRequest{
		userID:   userID,
		amount:   amount,
		idemKey:  idempotencyKey,
		txnType:  domain.TransactionTypeWithdraw,
		lockUser: true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal accepted",
		"payment_id", payment.ID,
		"user_id", userID,
		"amount", amount.String(),
	)
	return payment, nil
}
