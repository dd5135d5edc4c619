package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/domain"
)

// UserRepository is the port for user rows. The ForUpdate variant is only
// meaningful inside Store.WithTx.
type UserRepository interface {
	Create(ctx context.Context, balance decimal.Decimal) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.User, error)
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Payment, error)
	GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
}

type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByPaymentID(ctx context.Context, paymentID int64) (*domain.Transaction, error)
	GetByPaymentIDForUpdate(ctx context.Context, paymentID int64) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus) error
}

type TaskRepository interface {
	Create(ctx context.Context, t *domain.PaymentTask) error
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.PaymentTask, error)
	// ReserveNext claims the oldest eligible task under FOR UPDATE SKIP
	// LOCKED. Eligible: status new, or processing with locked_at older than
	// now-processingTimeout; and next_retry_at null or due. Returns
	// ErrTaskNotFound when no task is eligible.
	ReserveNext(ctx context.Context, now time.Time, processingTimeout time.Duration) (*domain.PaymentTask, error)
	Update(ctx context.Context, t *domain.PaymentTask) error
}

type DLQRepository interface {
	// Insert writes the entry unless a row for the payment already exists.
	// Reports whether a new row was written.
	Insert(ctx context.Context, e *domain.DLQEntry) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*domain.DLQEntry, error)
}

// Repositories bundles the repository ports bound to one executor: either
// the pool for plain reads or a single transaction inside WithTx.
type Repositories struct {
	Users        UserRepository
	Payments     PaymentRepository
	Transactions TransactionRepository
	Tasks        TaskRepository
	DLQ          DLQRepository
}

// Store is the persistence port. WithTx runs fn inside one database
// transaction; the repositories passed to fn share that transaction, so row
// locks taken by ForUpdate calls hold until fn returns.
type Store interface {
	Repos() Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}

// GatewayClient is the port for the external payment gateway.
type GatewayClient interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// ChargeRequest is the outbound gateway payload. The client lowers the
// decimal amounts to plain JSON numbers on the wire.
type ChargeRequest struct {
	PaymentID  int64
	UserID     int64
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Type       domain.TransactionType
}

// ChargeResult classifies a gateway response. The client never retries;
// the worker's scheduler decides what to do with retryable failures.
type ChargeResult struct {
	Success   bool
	ErrorCode string
	Retryable bool
}
