// Package gateway holds the outbound HTTP client for the external payment
// gateway. The client is single-shot: it classifies each response as
// success, retryable or non-retryable, and the worker's scheduler decides
// whether to try again.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/paysys/payment-service/internal/application"
)

const (
	ErrCodeTimeout = "gateway_timeout"
	ErrCodeNetwork = "gateway_unreachable"
)

type HTTPClient struct {
	chargeURL  string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		chargeURL:  strings.TrimRight(baseURL, "/") + "/pay",
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ application.GatewayClient = (*HTTPClient)(nil)

// Charge posts the payment payload and classifies the outcome:
//
//	2xx                      -> success
//	timeout, transport error -> retryable
//	5xx, 429                 -> retryable
//	any other 4xx            -> non-retryable
//
// The response body is ignored; only the status code matters.
func (c *HTTPClient) Charge(ctx context.Context, req application.ChargeRequest) (application.ChargeResult, error) {
	// The gateway contract uses plain JSON numbers for amounts.
	wire := struct {
		PaymentID  int64   `json:"payment_id"`
		UserID     int64   `json:"user_id"`
		Amount     float64 `json:"amount"`
		Commission float64 `json:"commission"`
		Type       string  `json:"type"`
	}{
		PaymentID:  req.PaymentID,
		UserID:     req.UserID,
		Amount:     req.Amount.InexactFloat64(),
		Commission: req.Commission.InexactFloat64(),
		Type:       string(req.Type),
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return application.ChargeResult{}, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chargeURL, bytes.NewReader(body))
	if err != nil {
		return application.ChargeResult{}, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return application.ChargeResult{ErrorCode: ErrCodeTimeout, Retryable: true}, nil
		}
		return application.ChargeResult{ErrorCode: ErrCodeNetwork, Retryable: true}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return application.ChargeResult{Success: true}, nil
	}

	retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return application.ChargeResult{
		ErrorCode: fmt.Sprintf("gateway_error_%d", resp.StatusCode),
		Retryable: retryable,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
