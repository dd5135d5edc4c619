package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
)

type DepositService struct {
	store   application.Store
	metrics metrics.Sink
	feeRate decimal.Decimal
	logger  *slog.Logger
}

func NewDepositService(store application.Store, sink metrics.Sink, feeRate decimal.Decimal, logger *slog.Logger) *DepositService {
	return &DepositService{
		store:   store,
		metrics: sink,
		feeRate: feeRate,
		logger:  logger,
	}
}

// Deposit accepts a deposit request and schedules its async completion.
// The returned payment is in status "new"; the balance is credited later by
// the worker once the gateway confirms.
func (s *DepositService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, idempotencyKey string) (*domain.Payment, error) {
	s.metrics.Inc(metrics.DepositRequestsTotal)

	payment, err := runIntake(ctx, s.store, s.metrics, s.feeRate, intakeRequest{
		userID:  userID,
		amount:  amount,
		idemKey: idempotencyKey,
		txnType: domain.TransactionTypeDeposit,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit accepted",
		"payment_id", payment.ID,
		"user_id", userID,
		"amount", amount.String(),
	)
	return payment, nil
}
