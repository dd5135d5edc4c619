package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/application/services"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
	"github.com/paysys/payment-service/internal/storetest"
)

var feeRate = decimal.NewFromFloat(0.02)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireServiceError(t *testing.T, err error, code string) *application.ServiceError {
	t.Helper()
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok, "expected ServiceError, got %v", err)
	assert.Equal(t, code, svcErr.Code)
	return svcErr
}

func TestDepositCreatesPaymentTransactionAndTask(t *testing.T) {
	store := storetest.NewMemStore()
	reg := metrics.NewRegistry()
	svc := services.NewDepositService(store, reg, feeRate, discardLogger())

	user := store.SeedUser(dec("50"))

	payment, err := svc.Deposit(context.Background(), user.ID, dec("100"), "")
	require.NoError(t, err)
	require.NotNil(t, payment)

	assert.Equal(t, domain.PaymentStatusNew, payment.Status)
	assert.True(t, payment.Amount.Equal(dec("100")))
	assert.True(t, payment.Commission.Equal(dec("2.00")),
		"commission = %s", payment.Commission)

	txn := store.Transaction(payment.ID)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, domain.TransactionStatusProcessing, txn.Status)

	task := store.TaskForPayment(payment.ID)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskStatusNew, task.Status)
	assert.Zero(t, task.Attempts)
	assert.Nil(t, task.NextRetryAt)

	// Intake never touches the balance.
	assert.True(t, store.User(user.ID).Balance.Equal(dec("50")))

	snap := reg.Snapshot()
	assert.EqualValues(t, 1, snap[metrics.DepositRequestsTotal])
	assert.EqualValues(t, 1, snap[metrics.TaskEnqueuedTotal])
}

func TestDepositIdempotencyHit(t *testing.T) {
	store := storetest.NewMemStore()
	reg := metrics.NewRegistry()
	svc := services.NewDepositService(store, reg, feeRate, discardLogger())

	user := store.SeedUser(dec("50"))

	first, err := svc.Deposit(context.Background(), user.ID, dec("100"), "key-1")
	require.NoError(t, err)

	second, err := svc.Deposit(context.Background(), user.ID, dec("100"), "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.PaymentCount())
	assert.Equal(t, 1, store.TaskCount())

	snap := reg.Snapshot()
	assert.EqualValues(t, 1, snap[metrics.IdempotencyHitsTotal])
	assert.EqualValues(t, 1, snap[metrics.TaskEnqueuedTotal])
}

func TestDepositDuplicateKeyRaceFallsBackToWinner(t *testing.T) {
	store := storetest.NewMemStore()
	reg := metrics.NewRegistry()
	svc := services.NewDepositService(store, reg, feeRate, discardLogger())

	user := store.SeedUser(dec("50"))
	key := "key-race"
	winner := &domain.Payment{
		ID:             42,
		UserID:         user.ID,
		Amount:         dec("100"),
		Status:         domain.PaymentStatusNew,
		IdempotencyKey: &key,
	}

	// The lookup misses but the insert hits the unique constraint, as when
	// a concurrent request committed in between.
	store.GetByIdempotencyKeyFn = func(ctx context.Context, userID int64, k string) (*domain.Payment, error) {
		store.GetByIdempotencyKeyFn = nil
		return nil, domain.ErrPaymentNotFound
	}
	store.CreatePaymentFn = func(ctx context.Context, p *domain.Payment) error {
		store.GetByIdempotencyKeyFn = func(ctx context.Context, userID int64, k string) (*domain.Payment, error) {
			return winner, nil
		}
		return domain.ErrDuplicateIdempotencyKey
	}

	payment, err := svc.Deposit(context.Background(), user.ID, dec("100"), key)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, payment.ID)

	assert.EqualValues(t, 1, reg.Snapshot()[metrics.IdempotencyHitsTotal])
}

func TestDepositUserNotFound(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewDepositService(store, metrics.NewRegistry(), feeRate, discardLogger())

	_, err := svc.Deposit(context.Background(), 999, dec("100"), "")
	requireServiceError(t, err, application.ErrCodeUserNotFound)
}

func TestDepositInvalidAmount(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewDepositService(store, metrics.NewRegistry(), feeRate, discardLogger())

	user := store.SeedUser(dec("50"))

	for _, amount := range []string{"0", "-5", "1.005"} {
		_, err := svc.Deposit(context.Background(), user.ID, dec(amount), "")
		requireServiceError(t, err, application.ErrCodeBadRequest)
	}
	assert.Zero(t, store.PaymentCount())
}

func TestDepositIdempotencyKeyTooLong(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewDepositService(store, metrics.NewRegistry(), feeRate, discardLogger())

	user := store.SeedUser(dec("50"))

	longKey := make([]byte, 65)
	for i := range longKey {
		longKey[i] = 'a'
	}

	_, err := svc.Deposit(context.Background(), user.ID, dec("100"), string(longKey))
	requireServiceError(t, err, application.ErrCodeBadRequest)
}

func TestWithdrawAccepted(t *testing.T) {
	store := storetest.NewMemStore()
	reg := metrics.NewRegistry()
	svc := services.NewWithdrawService(store, reg, feeRate, discardLogger())

	user := store.SeedUser(dec("102.00"))

	payment, err := svc.Withdraw(context.Background(), user.ID, dec("100"), "")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusNew, payment.Status)
	assert.NotNil(t, store.TaskForPayment(payment.ID))

	// The debit happens later, in the worker.
	assert.True(t, store.User(user.ID).Balance.Equal(dec("102.00")))

	assert.EqualValues(t, 1, reg.Snapshot()[metrics.WithdrawRequestsTotal])
}

func TestWithdrawInsufficientFundsAtIntake(t *testing.T) {
	store := storetest.NewMemStore()
	reg := metrics.NewRegistry()
	svc := services.NewWithdrawService(store, reg, feeRate, discardLogger())

	user := store.SeedUser(dec("10"))

	_, err := svc.Withdraw(context.Background(), user.ID, dec("100"), "")
	svcErr := requireServiceError(t, err, application.ErrCodeInsufficientFunds)
	assert.Equal(t, 400, svcErr.HTTPStatus)

	// The refusal is recorded: failed payment and transaction, no task.
	payments := store.Payments()
	require.Len(t, payments, 1)
	assert.Zero(t, store.TaskCount())

	failed := payments[0]
	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, domain.ReasonInsufficientFunds, *failed.LastError)

	txn := store.Transaction(failed.ID)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionStatusFailed, txn.Status)

	assert.True(t, store.User(user.ID).Balance.Equal(dec("10")))
	assert.Zero(t, reg.Snapshot()[metrics.TaskEnqueuedTotal])
}

func TestWithdrawExactBalanceAccepted(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewWithdrawService(store, metrics.NewRegistry(), feeRate, discardLogger())

	// balance == amount + commission is sufficient.
	user := store.SeedUser(dec("102.00"))

	payment, err := svc.Withdraw(context.Background(), user.ID, dec("100"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusNew, payment.Status)
}
