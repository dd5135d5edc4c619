package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/paysys/payment-service/internal/application"
)

type createUserRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type userResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

func (h *Handlers) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, application.NewBadRequestError(fmt.Errorf("invalid JSON body: %w", err)), h.logger)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Balance)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, userResponse{UserID: user.ID, Balance: user.Balance})
}

func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, application.NewBadRequestError(fmt.Errorf("invalid user id: %w", err)), h.logger)
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, userResponse{UserID: user.ID, Balance: user.Balance})
}
