package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError carries the HTTP disposition of a domain failure from the
// use cases to the REST layer.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeUserNotFound        = "user_not_found"
	ErrCodePaymentNotFound     = "payment_not_found"
	ErrCodeInsufficientFunds   = "insufficient_funds"
	ErrCodeIdempotencyConflict = "idempotency_conflict"
	ErrCodeBadRequest          = "bad_request"
	ErrCodeInternal            = "internal_error"
)

func NewUserNotFoundError(userID int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUserNotFound,
		Message:    fmt.Sprintf("user %d not found", userID),
		HTTPStatus: http.StatusNotFound,
	}
}

func NewPaymentNotFoundError(paymentID int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentNotFound,
		Message:    fmt.Sprintf("payment %d not found", paymentID),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewInsufficientFundsError reports an intake-time balance shortfall. The
// failed payment is persisted before this error surfaces.
func NewInsufficientFundsError(paymentID int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInsufficientFunds,
		Message:    fmt.Sprintf("insufficient funds for this withdrawal, payment_id=%d", paymentID),
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewIdempotencyConflictError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyConflict,
		Message:    "idempotency key reused with different request parameters",
		HTTPStatus: http.StatusConflict,
	}
}

func NewBadRequestError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeBadRequest,
		Message:    "invalid request",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
