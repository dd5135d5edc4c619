package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/infrastructure/persistence/postgres"
	"github.com/paysys/payment-service/internal/testhelpers"
)

type StoreTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	store  *postgres.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.store = postgres.NewStore(s.testDB.DB)
}

func (s *StoreTestSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *StoreTestSuite) SetupTest() {
	s.testDB.CleanTables(s.T())
}

func (s *StoreTestSuite) dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	s.Require().NoError(err)
	return d
}

func (s *StoreTestSuite) seedUser(balance string) *domain.User {
	user, err := s.store.Repos().Users.Create(context.Background(), s.dec(balance))
	s.Require().NoError(err)
	return user
}

func (s *StoreTestSuite) seedPendingPayment(userID int64, amount, commission string) (*domain.Payment, *domain.PaymentTask) {
	ctx := context.Background()
	var (
		payment *domain.Payment
		task    *domain.PaymentTask
	)

	err := s.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		payment = &domain.Payment{
			UserID:     userID,
			Amount:     s.dec(amount),
			Commission: s.dec(commission),
			Status:     domain.PaymentStatusNew,
		}
		if err := r.Payments.Create(ctx, payment); err != nil {
			return err
		}

		txn := &domain.Transaction{
			UserID:     userID,
			PaymentID:  &payment.ID,
			Amount:     s.dec(amount),
			Commission: s.dec(commission),
			Type:       domain.TransactionTypeDeposit,
			Status:     domain.TransactionStatusProcessing,
		}
		if err := r.Transactions.Create(ctx, txn); err != nil {
			return err
		}

		task = &domain.PaymentTask{PaymentID: payment.ID, Status: domain.TaskStatusNew}
		return r.Tasks.Create(ctx, task)
	})
	s.Require().NoError(err)
	return payment, task
}

func (s *StoreTestSuite) TestUserRoundTrip() {
	ctx := context.Background()

	user := s.seedUser("100.50")
	s.Require().NotZero(user.ID)

	got, err := s.store.Repos().Users.GetByID(ctx, user.ID)
	s.Require().NoError(err)
	s.True(got.Balance.Equal(s.dec("100.50")), "balance = %s", got.Balance)

	s.Require().NoError(s.store.Repos().Users.UpdateBalance(ctx, user.ID, s.dec("42.00")))

	got, err = s.store.Repos().Users.GetByID(ctx, user.ID)
	s.Require().NoError(err)
	s.True(got.Balance.Equal(s.dec("42.00")))

	_, err = s.store.Repos().Users.GetByID(ctx, 9999)
	s.ErrorIs(err, domain.ErrUserNotFound)
}

func (s *StoreTestSuite) TestPaymentIdempotencyConstraint() {
	ctx := context.Background()
	user := s.seedUser("100")
	key := "idem-1"

	first := &domain.Payment{
		UserID:         user.ID,
		Amount:         s.dec("10"),
		Commission:     s.dec("0.20"),
		Status:         domain.PaymentStatusNew,
		IdempotencyKey: &key,
	}
	s.Require().NoError(s.store.Repos().Payments.Create(ctx, first))

	dup := &domain.Payment{
		UserID:         user.ID,
		Amount:         s.dec("10"),
		Commission:     s.dec("0.20"),
		Status:         domain.PaymentStatusNew,
		IdempotencyKey: &key,
	}
	err := s.store.Repos().Payments.Create(ctx, dup)
	s.ErrorIs(err, domain.ErrDuplicateIdempotencyKey)

	got, err := s.store.Repos().Payments.GetByIdempotencyKey(ctx, user.ID, key)
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)

	// A different user may reuse the same key.
	other := s.seedUser("100")
	p := &domain.Payment{
		UserID:         other.ID,
		Amount:         s.dec("10"),
		Commission:     s.dec("0.20"),
		Status:         domain.PaymentStatusNew,
		IdempotencyKey: &key,
	}
	s.NoError(s.store.Repos().Payments.Create(ctx, p))
}

func (s *StoreTestSuite) TestNullIdempotencyKeysDoNotCollide() {
	ctx := context.Background()
	user := s.seedUser("100")

	for i := 0; i < 2; i++ {
		p := &domain.Payment{
			UserID:     user.ID,
			Amount:     s.dec("10"),
			Commission: s.dec("0.20"),
			Status:     domain.PaymentStatusNew,
		}
		s.Require().NoError(s.store.Repos().Payments.Create(ctx, p))
	}
}

func (s *StoreTestSuite) TestReserveNextOrderAndEligibility() {
	ctx := context.Background()
	user := s.seedUser("1000")

	_, first := s.seedPendingPayment(user.ID, "10", "0.20")
	_, second := s.seedPendingPayment(user.ID, "20", "0.40")

	err := s.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		task, err := r.Tasks.ReserveNext(ctx, time.Now().UTC(), 30*time.Second)
		s.Require().NoError(err)
		s.Equal(first.ID, task.ID)

		// While the first reservation holds its lock, a second worker
		// skips to the next task instead of blocking.
		var innerID int64
		errInner := s.store.WithTx(ctx, func(ctx context.Context, r2 application.Repositories) error {
			inner, err := r2.Tasks.ReserveNext(ctx, time.Now().UTC(), 30*time.Second)
			if err != nil {
				return err
			}
			innerID = inner.ID
			return nil
		})
		s.Require().NoError(errInner)
		s.Equal(second.ID, innerID)
		return nil
	})
	s.Require().NoError(err)
}

func (s *StoreTestSuite) TestReserveNextSkipsFutureRetry() {
	ctx := context.Background()
	user := s.seedUser("1000")
	_, task := s.seedPendingPayment(user.ID, "10", "0.20")

	future := time.Now().UTC().Add(time.Hour)
	task.NextRetryAt = &future
	s.Require().NoError(s.store.Repos().Tasks.Update(ctx, task))

	_, err := s.store.Repos().Tasks.ReserveNext(ctx, time.Now().UTC(), 30*time.Second)
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

func (s *StoreTestSuite) TestReserveNextRecoversStuckTask() {
	ctx := context.Background()
	user := s.seedUser("1000")
	_, task := s.seedPendingPayment(user.ID, "10", "0.20")

	stale := time.Now().UTC().Add(-time.Hour)
	task.Status = domain.TaskStatusProcessing
	task.LockedAt = &stale
	s.Require().NoError(s.store.Repos().Tasks.Update(ctx, task))

	got, err := s.store.Repos().Tasks.ReserveNext(ctx, time.Now().UTC(), 30*time.Second)
	s.Require().NoError(err)
	s.Equal(task.ID, got.ID)
}

func (s *StoreTestSuite) TestDLQInsertOnce() {
	ctx := context.Background()
	user := s.seedUser("1000")
	payment, _ := s.seedPendingPayment(user.ID, "10", "0.20")

	entry := &domain.DLQEntry{
		PaymentID:   payment.ID,
		UserID:      user.ID,
		Amount:      s.dec("10"),
		Commission:  s.dec("0.20"),
		PaymentType: "deposit",
		Error:       "gateway_error_503",
		Attempts:    3,
	}

	written, err := s.store.Repos().DLQ.Insert(ctx, entry)
	s.Require().NoError(err)
	s.True(written)

	written, err = s.store.Repos().DLQ.Insert(ctx, entry)
	s.Require().NoError(err)
	s.False(written)

	entries, err := s.store.Repos().DLQ.List(ctx, 10, 0)
	s.Require().NoError(err)
	s.Len(entries, 1)
	s.Equal("gateway_error_503", entries[0].Error)
}

func (s *StoreTestSuite) TestWithTxRollsBackOnError() {
	ctx := context.Background()
	user := s.seedUser("100")

	err := s.store.WithTx(ctx, func(ctx context.Context, r application.Repositories) error {
		if err := r.Users.UpdateBalance(ctx, user.ID, s.dec("0")); err != nil {
			return err
		}
		return domain.ErrInvalidAmount
	})
	s.ErrorIs(err, domain.ErrInvalidAmount)

	got, err := s.store.Repos().Users.GetByID(ctx, user.ID)
	s.Require().NoError(err)
	s.True(got.Balance.Equal(s.dec("100")), "rollback left balance %s", got.Balance)
}

func (s *StoreTestSuite) TestBalanceCheckConstraint() {
	ctx := context.Background()
	user := s.seedUser("10")

	err := s.store.Repos().Users.UpdateBalance(ctx, user.ID, s.dec("-1"))
	s.Error(err, "negative balance must violate the check constraint")
}
