package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
)

// UserService covers the admin surface: seeding users and reading their
// balance. Balances are only ever mutated by the outcome appliers.
type UserService struct {
	store application.Store
}

func NewUserService(store application.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) CreateUser(ctx context.Context, balance decimal.Decimal) (*domain.User, error) {
	if balance.IsNegative() {
		return nil, application.NewBadRequestError(fmt.Errorf("balance must be non-negative"))
	}

	user, err := s.store.Repos().Users.Create(ctx, balance)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.store.Repos().Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, application.NewUserNotFoundError(id)
		}
		return nil, application.NewInternalError(err)
	}
	return user, nil
}
