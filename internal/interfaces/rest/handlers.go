package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
)

type DepositService interface {
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal, idempotencyKey string) (*domain.Payment, error)
}

type WithdrawService interface {
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, idempotencyKey string) (*domain.Payment, error)
}

type QueryService interface {
	GetPayment(ctx context.Context, id int64) (*domain.Payment, *domain.Transaction, error)
	ListDLQ(ctx context.Context, limit, offset int) ([]*domain.DLQEntry, error)
}

type UserService interface {
	CreateUser(ctx context.Context, balance decimal.Decimal) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	deposits  DepositService
	withdraws WithdrawService
	queries   QueryService
	users     UserService
	db        Pinger
	metrics   *metrics.Registry
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewHandlers(
	deposits DepositService,
	withdraws WithdrawService,
	queries QueryService,
	users UserService,
	db Pinger,
	registry *metrics.Registry,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		deposits:  deposits,
		withdraws: withdraws,
		queries:   queries,
		users:     users,
		db:        db,
		metrics:   registry,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/deposit", h.HandleDeposit)
		r.Post("/payments/withdraw", h.HandleWithdraw)
		r.Get("/payments/{id}", h.HandleGetPayment)
		r.Get("/dlq", h.HandleListDLQ)
		r.Post("/users", h.HandleCreateUser)
		r.Get("/users/{id}", h.HandleGetUser)
		r.Get("/health", h.HandleHealth)
		r.Get("/metrics", h.HandleMetrics)
	})

	// Exposition-format mirror of the JSON counter map.
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	return r
}
