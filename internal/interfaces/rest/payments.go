package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
)

type depositRequest struct {
	UserID  int64           `json:"user_id" validate:"required,gt=0"`
	Deposit decimal.Decimal `json:"deposit" validate:"required"`
}

type withdrawRequest struct {
	UserID int64           `json:"user_id" validate:"required,gt=0"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type depositResponse struct {
	PaymentID int64           `json:"payment_id"`
	UserID    int64           `json:"user_id"`
	Deposit   decimal.Decimal `json:"deposit"`
	Status    string          `json:"status"`
}

type withdrawResponse struct {
	PaymentID int64           `json:"payment_id"`
	UserID    int64           `json:"user_id"`
	Withdraw  decimal.Decimal `json:"withdraw"`
	Status    string          `json:"status"`
}

type paymentStatusResponse struct {
	PaymentID         int64           `json:"payment_id"`
	UserID            int64           `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Commission        decimal.Decimal `json:"commission"`
	Status            string          `json:"status"`
	Attempts          int             `json:"attempts"`
	LastError         *string         `json:"last_error"`
	TransactionStatus *string         `json:"transaction_status"`
}

func (h *Handlers) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, application.NewBadRequestError(fmt.Errorf("invalid JSON body: %w", err)), h.logger)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, application.NewBadRequestError(err), h.logger)
		return
	}

	payment, err := h.deposits.Deposit(r.Context(), req.UserID, req.Deposit, r.Header.Get("Idempotency-Key"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, depositResponse{
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Deposit:   payment.Amount,
		Status:    apiStatus(payment),
	})
}

func (h *Handlers) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, application.NewBadRequestError(fmt.Errorf("invalid JSON body: %w", err)), h.logger)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, application.NewBadRequestError(err), h.logger)
		return
	}

	payment, err := h.withdraws.Withdraw(r.Context(), req.UserID, req.Amount, r.Header.Get("Idempotency-Key"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, withdrawResponse{
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Withdraw:  payment.Amount,
		Status:    apiStatus(payment),
	})
}

func (h *Handlers) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, application.NewBadRequestError(fmt.Errorf("invalid payment id: %w", err)), h.logger)
		return
	}

	payment, txn, err := h.queries.GetPayment(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp := paymentStatusResponse{
		PaymentID:  payment.ID,
		UserID:     payment.UserID,
		Amount:     payment.Amount,
		Commission: payment.Commission,
		Status:     string(payment.Status),
		Attempts:   payment.Attempts,
		LastError:  payment.LastError,
	}
	if txn != nil {
		s := string(txn.Status)
		resp.TransactionStatus = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// apiStatus presents accepted-but-unprocessed payments as "processing";
// clients only see the internal "new" state once it becomes terminal or
// retried, via the status endpoint.
func apiStatus(p *domain.Payment) string {
	if p.IsTerminal() {
		return string(p.Status)
	}
	return "processing"
}
