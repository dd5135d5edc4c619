package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/domain"
)

type dlqEntryResponse struct {
	ID          int64           `json:"id"`
	PaymentID   int64           `json:"payment_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Commission  decimal.Decimal `json:"commission"`
	PaymentType string          `json:"payment_type"`
	Error       string          `json:"error"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h *Handlers) HandleListDLQ(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.queries.ListDLQ(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	out := make([]dlqEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toDLQResponse(e))
	}
	WriteJSON(w, http.StatusOK, out)
}

func toDLQResponse(e *domain.DLQEntry) dlqEntryResponse {
	return dlqEntryResponse{
		ID:          e.ID,
		PaymentID:   e.PaymentID,
		UserID:      e.UserID,
		Amount:      e.Amount,
		Commission:  e.Commission,
		PaymentType: e.PaymentType,
		Error:       e.Error,
		Attempts:    e.Attempts,
		CreatedAt:   e.CreatedAt,
	}
}
