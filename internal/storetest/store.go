// Package storetest provides an in-memory implementation of the
// persistence ports for unit tests. Behavior mirrors the PostgreSQL store:
// the (user_id, idempotency_key) unique constraint, one task per payment,
// reservation eligibility, and the DLQ insert-once rule. Each method can be
// overridden with a Fn field for failure injection.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
)

type MemStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users        map[int64]*domain.User
	payments     map[int64]*domain.Payment
	transactions map[int64]*domain.Transaction
	tasks        map[int64]*domain.PaymentTask
	dlq          map[int64]*domain.DLQEntry

	nextID int64

	WithTxFn               func(ctx context.Context, fn func(ctx context.Context, r application.Repositories) error) error
	CreatePaymentFn        func(ctx context.Context, p *domain.Payment) error
	GetByIdempotencyKeyFn  func(ctx context.Context, userID int64, key string) (*domain.Payment, error)
	ReserveNextFn          func(ctx context.Context, now time.Time, processingTimeout time.Duration) (*domain.PaymentTask, error)
	UpdateBalanceFn        func(ctx context.Context, id int64, balance decimal.Decimal) error
	InsertDLQFn            func(ctx context.Context, e *domain.DLQEntry) (bool, error)
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:        make(map[int64]*domain.User),
		payments:     make(map[int64]*domain.Payment),
		transactions: make(map[int64]*domain.Transaction),
		tasks:        make(map[int64]*domain.PaymentTask),
		dlq:          make(map[int64]*domain.DLQEntry),
	}
}

var _ application.Store = (*MemStore)(nil)

func (s *MemStore) Repos() application.Repositories {
	return application.Repositories{
		Users:        &memUsers{s},
		Payments:     &memPayments{s},
		Transactions: &memTransactions{s},
		Tasks:        &memTasks{s},
		DLQ:          &memDLQ{s},
	}
}

// WithTx runs fn against the same shared state. Transactions are
// serialized, which stands in for the row locking the real store does.
// There is no rollback; tests that need an aborted transaction inject an
// error through a Fn override and assert on the pre-call state.
func (s *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context, r application.Repositories) error) error {
	if s.WithTxFn != nil {
		return s.WithTxFn(ctx, fn)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, s.Repos())
}

func (s *MemStore) id() int64 {
	s.nextID++
	return s.nextID
}

// Seed helpers used by tests.

func (s *MemStore) SeedUser(balance decimal.Decimal) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &domain.User{ID: s.id(), Balance: balance}
	s.users[u.ID] = u
	return copyUser(u)
}

// SeedPendingPayment inserts the payment, transaction and task rows the way
// intake would, and returns the task.
func (s *MemStore) SeedPendingPayment(userID int64, amount, commission decimal.Decimal, txnType domain.TransactionType) *domain.PaymentTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	p := &domain.Payment{
		ID:         s.id(),
		UserID:     userID,
		Amount:     amount,
		Commission: commission,
		Status:     domain.PaymentStatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.payments[p.ID] = p

	t := &domain.Transaction{
		ID:         s.id(),
		UserID:     userID,
		PaymentID:  &p.ID,
		Amount:     amount,
		Commission: commission,
		Type:       txnType,
		Status:     domain.TransactionStatusProcessing,
	}
	s.transactions[t.ID] = t

	task := &domain.PaymentTask{
		ID:        s.id(),
		PaymentID: p.ID,
		Status:    domain.TaskStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks[task.ID] = task
	return copyTask(task)
}

// DeleteTransaction removes the transaction row for a payment, simulating
// the missing-transaction corruption case.
func (s *MemStore) DeleteTransaction(paymentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.transactions {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			delete(s.transactions, id)
		}
	}
}

// State accessors returning copies.

func (s *MemStore) User(id int64) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return copyUser(u)
	}
	return nil
}

func (s *MemStore) Payment(id int64) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		return copyPayment(p)
	}
	return nil
}

func (s *MemStore) Task(id int64) *domain.PaymentTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return copyTask(t)
	}
	return nil
}

func (s *MemStore) TaskForPayment(paymentID int64) *domain.PaymentTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.PaymentID == paymentID {
			return copyTask(t)
		}
	}
	return nil
}

func (s *MemStore) Transaction(paymentID int64) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			return copyTransaction(t)
		}
	}
	return nil
}

func (s *MemStore) DLQEntry(paymentID int64) *domain.DLQEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.dlq[paymentID]; ok {
		cp := *e
		return &cp
	}
	return nil
}

// Payments returns copies of all payment rows ordered by id.
func (s *MemStore) Payments() []*domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, copyPayment(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *MemStore) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Repository implementations.

type memUsers struct{ s *MemStore }

func (m *memUsers) Create(ctx context.Context, balance decimal.Decimal) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u := &domain.User{ID: m.s.id(), Balance: balance}
	m.s.users[u.ID] = u
	return copyUser(u), nil
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *memUsers) GetByIDForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return m.GetByID(ctx, id)
}

func (m *memUsers) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if m.s.UpdateBalanceFn != nil {
		return m.s.UpdateBalanceFn(ctx, id, balance)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = balance
	return nil
}

type memPayments struct{ s *MemStore }

func (m *memPayments) Create(ctx context.Context, p *domain.Payment) error {
	if m.s.CreatePaymentFn != nil {
		return m.s.CreatePaymentFn(ctx, p)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if p.IdempotencyKey != nil {
		for _, existing := range m.s.payments {
			if existing.UserID == p.UserID &&
				existing.IdempotencyKey != nil &&
				*existing.IdempotencyKey == *p.IdempotencyKey {
				return domain.ErrDuplicateIdempotencyKey
			}
		}
	}

	now := time.Now().UTC()
	p.ID = m.s.id()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.s.payments[p.ID] = copyPayment(p)
	return nil
}

func (m *memPayments) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (m *memPayments) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *memPayments) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Payment, error) {
	if m.s.GetByIdempotencyKeyFn != nil {
		return m.s.GetByIdempotencyKeyFn(ctx, userID, key)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, p := range m.s.payments {
		if p.UserID == userID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			return copyPayment(p), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *memPayments) Update(ctx context.Context, p *domain.Payment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.payments[p.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	m.s.payments[p.ID] = copyPayment(p)
	return nil
}

type memTransactions struct{ s *MemStore }

func (m *memTransactions) Create(ctx context.Context, t *domain.Transaction) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	t.ID = m.s.id()
	m.s.transactions[t.ID] = copyTransaction(t)
	return nil
}

func (m *memTransactions) GetByPaymentID(ctx context.Context, paymentID int64) (*domain.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, t := range m.s.transactions {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			return copyTransaction(t), nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *memTransactions) GetByPaymentIDForUpdate(ctx context.Context, paymentID int64) (*domain.Transaction, error) {
	return m.GetByPaymentID(ctx, paymentID)
}

func (m *memTransactions) UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	t, ok := m.s.transactions[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	t.Status = status
	return nil
}

type memTasks struct{ s *MemStore }

func (m *memTasks) Create(ctx context.Context, t *domain.PaymentTask) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	now := time.Now().UTC()
	t.ID = m.s.id()
	t.CreatedAt = now
	t.UpdatedAt = now
	m.s.tasks[t.ID] = copyTask(t)
	return nil
}

func (m *memTasks) GetByIDForUpdate(ctx context.Context, id int64) (*domain.PaymentTask, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	t, ok := m.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return copyTask(t), nil
}

func (m *memTasks) ReserveNext(ctx context.Context, now time.Time, processingTimeout time.Duration) (*domain.PaymentTask, error) {
	if m.s.ReserveNextFn != nil {
		return m.s.ReserveNextFn(ctx, now, processingTimeout)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stuckBefore := now.Add(-processingTimeout)

	var eligible []*domain.PaymentTask
	for _, t := range m.s.tasks {
		claimable := t.Status == domain.TaskStatusNew ||
			(t.Status == domain.TaskStatusProcessing && t.LockedAt != nil && t.LockedAt.Before(stuckBefore))
		due := t.NextRetryAt == nil || !t.NextRetryAt.After(now)
		if claimable && due {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return nil, domain.ErrTaskNotFound
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].ID < eligible[j].ID
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	return copyTask(eligible[0]), nil
}

func (m *memTasks) Update(ctx context.Context, t *domain.PaymentTask) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.tasks[t.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	m.s.tasks[t.ID] = copyTask(t)
	return nil
}

type memDLQ struct{ s *MemStore }

func (m *memDLQ) Insert(ctx context.Context, e *domain.DLQEntry) (bool, error) {
	if m.s.InsertDLQFn != nil {
		return m.s.InsertDLQFn(ctx, e)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.dlq[e.PaymentID]; ok {
		return false, nil
	}

	cp := *e
	cp.ID = m.s.id()
	cp.CreatedAt = time.Now().UTC()
	m.s.dlq[e.PaymentID] = &cp
	return true, nil
}

func (m *memDLQ) List(ctx context.Context, limit, offset int) ([]*domain.DLQEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	all := make([]*domain.DLQEntry, 0, len(m.s.dlq))
	for _, e := range m.s.dlq {
		cp := *e
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	return &cp
}

func copyPayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.IdempotencyKey != nil {
		k := *p.IdempotencyKey
		cp.IdempotencyKey = &k
	}
	if p.LastError != nil {
		e := *p.LastError
		cp.LastError = &e
	}
	if p.NextRetryAt != nil {
		t := *p.NextRetryAt
		cp.NextRetryAt = &t
	}
	if p.LockedAt != nil {
		t := *p.LockedAt
		cp.LockedAt = &t
	}
	return &cp
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.PaymentID != nil {
		id := *t.PaymentID
		cp.PaymentID = &id
	}
	return &cp
}

func copyTask(t *domain.PaymentTask) *domain.PaymentTask {
	cp := *t
	if t.LastError != nil {
		e := *t.LastError
		cp.LastError = &e
	}
	if t.NextRetryAt != nil {
		ts := *t.NextRetryAt
		cp.NextRetryAt = &ts
	}
	if t.LockedAt != nil {
		ts := *t.LockedAt
		cp.LockedAt = &ts
	}
	return &cp
}
