package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
)

// Processor owns the per-task state transitions: reservation, the gateway
// call dispatch and the three outcome appliers. Every applier is one
// database transaction; locks are always taken in the order
// task -> payment -> transaction -> user.
type Processor struct {
	store             application.Store
	gateway           application.GatewayClient
	metrics           metrics.Sink
	policy            RetryPolicy
	processingTimeout time.Duration
	logger            *slog.Logger
}

func NewProcessor(
	store application.Store,
	gateway application.GatewayClient,
	sink metrics.Sink,
	policy RetryPolicy,
	processingTimeout time.Duration,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store:             store,
		gateway:           gateway,
		metrics:           sink,
		policy:            policy,
		processingTimeout: processingTimeout,
		logger:            logger,
	}
}

// ProcessOne reserves and completes a single task. It reports whether any
// work was found; errors are returned for logging only, the task itself is
// left reservable (or stuck-recovered) when the transaction aborted.
func (p *Processor) ProcessOne(ctx context.Context) (bool, error) {
	task, ok, err := p.reserve(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	payload, err := p.buildPayload(ctx, task.PaymentID)
	if err != nil {
		return true, err
	}
	if payload == nil {
		return true, p.MarkTerminalFailure(ctx, task.ID, domain.ReasonMissingTransaction)
	}

	result, err := p.gateway.Charge(ctx, *payload)
	if err != nil {
		// Request could not even be built; treat like a transient
		// gateway failure so the scheduler backs off.
		p.logger.Error("gateway charge failed", "payment_id", task.PaymentID, "error", err)
		result = application.ChargeResult{ErrorCode: "gateway_error", Retryable: true}
	}

	return true, p.dispatch(ctx, task, result)
}

func (p *Processor) dispatch(ctx context.Context, task *domain.PaymentTask, result application.ChargeResult) error {
	switch {
	case result.Success:
		p.metrics.Inc(metrics.GatewaySuccessTotal)
		return p.ApplySuccess(ctx, task.ID)
	case result.Retryable:
		if result.ErrorCode == "gateway_timeout" {
			p.metrics.Inc(metrics.GatewayTimeoutsTotal)
		} else {
			p.metrics.Inc(metrics.GatewayErrorsTotal)
		}
		return p.ApplyRetryableFailure(ctx, task.ID, result.ErrorCode)
	default:
		p.metrics.Inc(metrics.GatewayNonRetryableTotal)
		return p.MarkTerminalFailure(ctx, task.ID, result.ErrorCode)
	}
}

// reserve claims the oldest eligible task and moves both the task and its
// payment into processing. When the payment is already terminal the task is
// finalized to match and no work is reported (invariant: task and payment
// stay in lockstep).
func (p *Processor) reserve(ctx context.Context) (*domain.PaymentTask, bool, error) {
	var (
		reserved *domain.PaymentTask
		noWork   bool
	)

	err := p.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		now := time.Now().UTC()

		task, err := r.Tasks.ReserveNext(ctx, now, p.processingTimeout)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				noWork = true
				return nil
			}
			return err
		}

		task.Status = domain.TaskStatusProcessing
		task.Attempts++
		task.LockedAt = &now
		task.NextRetryAt = nil
		if err := r.Tasks.Update(ctx, task); err != nil {
			return err
		}

		payment, err := r.Payments.GetByIDForUpdate(ctx, task.PaymentID)
		if err != nil {
			return err
		}

		switch payment.Status {
		case domain.PaymentStatusSuccess:
			task.Status = domain.TaskStatusDone
			task.LockedAt = nil
			noWork = true
			return r.Tasks.Update(ctx, task)
		case domain.PaymentStatusFailed:
			task.Status = domain.TaskStatusFailed
			task.LockedAt = nil
			noWork = true
			return r.Tasks.Update(ctx, task)
		}

		payment.Status = domain.PaymentStatusProcessing
		payment.Attempts = task.Attempts
		payment.LockedAt = &now
		payment.NextRetryAt = nil
		if err := r.Payments.Update(ctx, payment); err != nil {
			return err
		}

		reserved = task
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reserve task: %w", err)
	}
	if noWork || reserved == nil {
		return nil, false, nil
	}

	p.metrics.Inc(metrics.ProcessingStartedTotal)
	return reserved, true, nil
}

// buildPayload assembles the gateway request outside any transaction.
// A nil payload means the owning transaction row is missing.
func (p *Processor) buildPayload(ctx context.Context, paymentID int64) (*application.ChargeRequest, error) {
	r := p.store.Repos()

	payment, err := r.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	txn, err := r.Transactions.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &application.ChargeRequest{
		PaymentID:  payment.ID,
		UserID:     payment.UserID,
		Amount:     payment.Amount,
		Commission: payment.Commission,
		Type:       txn.Type,
	}, nil
}

type applyOutcome int

const (
	outcomeNone applyOutcome = iota
	outcomeSuccess
	outcomeRetried
	outcomeFailed
)

// ApplySuccess credits or debits the balance exactly once and finalizes
// payment, transaction and task. Re-invocation after a success is a no-op.
func (p *Processor) ApplySuccess(ctx context.Context, taskID int64) error {
	outcome := outcomeNone
	dlqWritten := false

	err := p.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		task, err := r.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		payment, err := r.Payments.GetByIDForUpdate(ctx, task.PaymentID)
		if err != nil {
			return err
		}

		if payment.Status == domain.PaymentStatusSuccess {
			task.Status = domain.TaskStatusDone
			task.LockedAt = nil
			return r.Tasks.Update(ctx, task)
		}

		txn, err := r.Transactions.GetByPaymentIDForUpdate(ctx, payment.ID)
		if err != nil {
			if errors.Is(err, domain.ErrTransactionNotFound) {
				outcome = outcomeFailed
				dlqWritten, err = failLocked(ctx, r, task, payment, nil, domain.ReasonMissingTransaction)
				return err
			}
			return err
		}

		user, err := r.Users.GetByIDForUpdate(ctx, payment.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				outcome = outcomeFailed
				dlqWritten, err = failLocked(ctx, r, task, payment, txn, domain.ReasonMissingUser)
				return err
			}
			return err
		}

		balance := user.Balance
		if txn.Type == domain.TransactionTypeDeposit {
			balance = balance.Add(payment.Amount.Sub(payment.Commission))
		} else {
			total := payment.Amount.Add(payment.Commission)
			// The intake check may be stale by now; re-check under
			// the user row lock.
			if balance.LessThan(total) {
				outcome = outcomeFailed
				dlqWritten, err = failLocked(ctx, r, task, payment, txn, domain.ReasonInsufficientFunds)
				return err
			}
			balance = balance.Sub(total)
		}

		if err := r.Users.UpdateBalance(ctx, user.ID, balance); err != nil {
			return err
		}

		payment.Status = domain.PaymentStatusSuccess
		payment.LastError = nil
		payment.LockedAt = nil
		payment.NextRetryAt = nil
		if err := r.Payments.Update(ctx, payment); err != nil {
			return err
		}
		if err := r.Transactions.UpdateStatus(ctx, txn.ID, domain.TransactionStatusSuccess); err != nil {
			return err
		}

		task.Status = domain.TaskStatusDone
		task.LastError = nil
		task.LockedAt = nil
		task.NextRetryAt = nil
		if err := r.Tasks.Update(ctx, task); err != nil {
			return err
		}

		outcome = outcomeSuccess
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply success: %w", err)
	}

	p.emit(taskID, outcome, dlqWritten)
	return nil
}

// ApplyRetryableFailure reschedules the task with backoff, or escalates to
// a terminal failure once attempts are exhausted.
func (p *Processor) ApplyRetryableFailure(ctx context.Context, taskID int64, errCode string) error {
	outcome := outcomeNone
	dlqWritten := false

	err := p.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		task, err := r.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		payment, err := r.Payments.GetByIDForUpdate(ctx, task.PaymentID)
		if err != nil {
			return err
		}
		if payment.IsTerminal() {
			return nil
		}

		if task.Attempts >= p.policy.MaxAttempts {
			txn, err := r.Transactions.GetByPaymentIDForUpdate(ctx, payment.ID)
			if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
				return err
			}
			outcome = outcomeFailed
			dlqWritten, err = failLocked(ctx, r, task, payment, txn, errCode)
			return err
		}

		delay := p.policy.Delay(task.Attempts)
		next := time.Now().UTC().Add(delay)

		task.Status = domain.TaskStatusNew
		task.LastError = &errCode
		task.NextRetryAt = &next
		task.LockedAt = nil
		if err := r.Tasks.Update(ctx, task); err != nil {
			return err
		}

		payment.Status = domain.PaymentStatusNew
		payment.LastError = &errCode
		payment.NextRetryAt = &next
		payment.LockedAt = nil
		if err := r.Payments.Update(ctx, payment); err != nil {
			return err
		}

		outcome = outcomeRetried
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply retryable failure: %w", err)
	}

	p.emit(taskID, outcome, dlqWritten)
	return nil
}

// MarkTerminalFailure finalizes the payment as failed and writes the DLQ
// row regardless of remaining attempts.
func (p *Processor) MarkTerminalFailure(ctx context.Context, taskID int64, errCode string) error {
	outcome := outcomeNone
	dlqWritten := false

	err := p.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		task, err := r.Tasks.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		payment, err := r.Payments.GetByIDForUpdate(ctx, task.PaymentID)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentStatusFailed {
			task.Status = domain.TaskStatusFailed
			task.LockedAt = nil
			return r.Tasks.Update(ctx, task)
		}

		txn, err := r.Transactions.GetByPaymentIDForUpdate(ctx, payment.ID)
		if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}

		outcome = outcomeFailed
		dlqWritten, err = failLocked(ctx, r, task, payment, txn, errCode)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark terminal failure: %w", err)
	}

	p.emit(taskID, outcome, dlqWritten)
	return nil
}

// failLocked performs the terminal-failure transition. Callers must hold
// the task and payment row locks; txn may be nil when the transaction row
// is missing.
func failLocked(
	ctx context.Context,
	r application.Repositories,
	task *domain.PaymentTask,
	payment *domain.Payment,
	txn *domain.Transaction,
	reason string,
) (bool, error) {
	payment.Status = domain.PaymentStatusFailed
	payment.LastError = &reason
	payment.LockedAt = nil
	payment.NextRetryAt = nil
	if err := r.Payments.Update(ctx, payment); err != nil {
		return false, err
	}

	if txn != nil {
		if err := r.Transactions.UpdateStatus(ctx, txn.ID, domain.TransactionStatusFailed); err != nil {
			return false, err
		}
	}

	task.Status = domain.TaskStatusFailed
	task.LastError = &reason
	task.LockedAt = nil
	task.NextRetryAt = nil
	if err := r.Tasks.Update(ctx, task); err != nil {
		return false, err
	}

	paymentType := "unknown"
	if txn != nil {
		paymentType = string(txn.Type)
	}

	return r.DLQ.Insert(ctx, &domain.DLQEntry{
		PaymentID:   payment.ID,
		UserID:      payment.UserID,
		Amount:      payment.Amount,
		Commission:  payment.Commission,
		PaymentType: paymentType,
		Error:       reason,
		Attempts:    payment.Attempts,
	})
}

func (p *Processor) emit(taskID int64, outcome applyOutcome, dlqWritten bool) {
	switch outcome {
	case outcomeSuccess:
		p.metrics.Inc(metrics.PaymentsSuccessTotal)
	case outcomeRetried:
		p.metrics.Inc(metrics.PaymentsRetriedTotal)
	case outcomeFailed:
		p.metrics.Inc(metrics.PaymentsFailedTotal)
		if dlqWritten {
			p.metrics.Inc(metrics.DLQWrittenTotal)
		}
		p.logger.Error("payment terminally failed", "task_id", taskID)
	}
}
