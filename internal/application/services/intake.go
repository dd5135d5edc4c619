package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
)

const maxIdempotencyKeyLen = 64

type intakeRequest struct {
	userID   int64
	amount   decimal.Decimal
	idemKey  string
	txnType  domain.TransactionType
	lockUser bool
}

// runIntake is the shared deposit/withdraw protocol: one database
// transaction that loads the user, resolves idempotency, computes the
// commission and persists payment + transaction (+ task when async work is
// needed). The (user_id, idempotency_key) unique constraint is the final
// authority on duplicates; a collision is resolved by re-reading the
// winning payment.
func runIntake(
	ctx context.Context,
	store application.Store,
	sink metrics.Sink,
	feeRate decimal.Decimal,
	req intakeRequest,
) (*domain.Payment, error) {
	if err := domain.ValidateAmount(req.amount); err != nil {
		return nil, application.NewBadRequestError(err)
	}
	if len(req.idemKey) > maxIdempotencyKeyLen {
		return nil, application.NewBadRequestError(fmt.Errorf("idempotency key longer than %d chars", maxIdempotencyKeyLen))
	}

	var (
		payment        *domain.Payment
		idemHit        bool
		enqueued       bool
		insufficientID int64
	)

	err := store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		var user *domain.User
		var err error
		if req.lockUser {
			user, err = r.Users.GetByIDForUpdate(ctx, req.userID)
		} else {
			user, err = r.Users.GetByID(ctx, req.userID)
		}
		if err != nil {
			return err
		}

		if req.idemKey != "" {
			existing, err := r.Payments.GetByIdempotencyKey(ctx, user.ID, req.idemKey)
			if err == nil {
				payment = existing
				idemHit = true
				return nil
			}
			if !errors.Is(err, domain.ErrPaymentNotFound) {
				return err
			}
		}

		commission := domain.Commission(req.amount, feeRate)

		var key *string
		if req.idemKey != "" {
			k := req.idemKey
			key = &k
		}

		if req.txnType == domain.TransactionTypeWithdraw {
			total := req.amount.Add(commission)
			if user.Balance.LessThan(total) {
				reason := domain.ReasonInsufficientFunds
				payment = &domain.Payment{
					UserID:         user.ID,
					Amount:         req.amount,
					Commission:     commission,
					Status:         domain.PaymentStatusFailed,
					IdempotencyKey: key,
					LastError:      &reason,
				}
				if err := r.Payments.Create(ctx, payment); err != nil {
					return err
				}
				insufficientID = payment.ID

				return r.Transactions.Create(ctx, &domain.Transaction{
					UserID:     user.ID,
					PaymentID:  &payment.ID,
					Amount:     req.amount,
					Commission: commission,
					Type:       req.txnType,
					Status:     domain.TransactionStatusFailed,
				})
			}
		}

		payment = &domain.Payment{
			UserID:         user.ID,
			Amount:         req.amount,
			Commission:     commission,
			Status:         domain.PaymentStatusNew,
			IdempotencyKey: key,
		}
		if err := r.Payments.Create(ctx, payment); err != nil {
			return err
		}

		err = r.Transactions.Create(ctx, &domain.Transaction{
			UserID:     user.ID,
			PaymentID:  &payment.ID,
			Amount:     req.amount,
			Commission: commission,
			Type:       req.txnType,
			Status:     domain.TransactionStatusProcessing,
		})
		if err != nil {
			return err
		}

		err = r.Tasks.Create(ctx, &domain.PaymentTask{
			PaymentID: payment.ID,
			Status:    domain.TaskStatusNew,
		})
		if err != nil {
			return err
		}

		enqueued = true
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateIdempotencyKey):
		// Lost the insert race; the winning payment is the answer.
		existing, readErr := store.Repos().Payments.GetByIdempotencyKey(ctx, req.userID, req.idemKey)
		if readErr != nil {
			return nil, application.NewInternalError(readErr)
		}
		sink.Inc(metrics.IdempotencyHitsTotal)
		return existing, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return nil, application.NewUserNotFoundError(req.userID)
	default:
		return nil, application.NewInternalError(err)
	}

	if idemHit {
		sink.Inc(metrics.IdempotencyHitsTotal)
		return payment, nil
	}
	if insufficientID != 0 {
		return nil, application.NewInsufficientFundsError(insufficientID)
	}
	if enqueued {
		sink.Inc(metrics.TaskEnqueuedTotal)
	}
	return payment, nil
}
