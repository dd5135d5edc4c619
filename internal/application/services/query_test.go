package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/application/services"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/storetest"
)

func TestGetPaymentWithTransaction(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewQueryService(store)

	user := store.SeedUser(dec("50"))
	task := store.SeedPendingPayment(user.ID, dec("100"), dec("2.00"), domain.TransactionTypeDeposit)

	payment, txn, err := svc.GetPayment(context.Background(), task.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	require.NotNil(t, txn)
	assert.Equal(t, task.PaymentID, payment.ID)
	assert.Equal(t, domain.TransactionStatusProcessing, txn.Status)
}

func TestGetPaymentMissingTransactionTolerated(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewQueryService(store)

	user := store.SeedUser(dec("50"))
	task := store.SeedPendingPayment(user.ID, dec("100"), dec("2.00"), domain.TransactionTypeDeposit)
	store.DeleteTransaction(task.PaymentID)

	payment, txn, err := svc.GetPayment(context.Background(), task.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Nil(t, txn)
}

func TestGetPaymentNotFound(t *testing.T) {
	svc := services.NewQueryService(storetest.NewMemStore())

	_, _, err := svc.GetPayment(context.Background(), 404)
	requireServiceError(t, err, application.ErrCodePaymentNotFound)
}

func TestListDLQClampsLimit(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewQueryService(store)

	entries, err := svc.ListDLQ(context.Background(), -1, -5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateUserRejectsNegativeBalance(t *testing.T) {
	svc := services.NewUserService(storetest.NewMemStore())

	_, err := svc.CreateUser(context.Background(), dec("-1"))
	requireServiceError(t, err, application.ErrCodeBadRequest)
}

func TestCreateAndGetUser(t *testing.T) {
	store := storetest.NewMemStore()
	svc := services.NewUserService(store)

	created, err := svc.CreateUser(context.Background(), dec("250.00"))
	require.NoError(t, err)

	got, err := svc.GetUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("250.00")))
}

func TestGetUserNotFound(t *testing.T) {
	svc := services.NewUserService(storetest.NewMemStore())

	_, err := svc.GetUser(context.Background(), 999)
	requireServiceError(t, err, application.ErrCodeUserNotFound)
}
