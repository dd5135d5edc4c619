package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/paysys/payment-service/internal/application"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps application errors to HTTP responses. Unknown errors are
// logged and reported as internal_error without leaking detail.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	svcErr, ok := application.IsServiceError(err)
	if !ok {
		svcErr = application.NewInternalError(err)
	}

	if svcErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("request failed", "code", svcErr.Code, "error", err)
	}

	WriteJSON(w, svcErr.HTTPStatus, ErrorResponse{
		Error: ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
		},
	})
}
