// Command mock-gateway is a development stand-in for the external payment
// gateway. It accepts every charge, then randomly simulates the failure
// modes the worker has to cope with: a stalled response that outlives the
// client timeout, and a 502.
package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type mockConfig struct {
	Port        string  `koanf:"mock_port"`
	TimeoutProb float64 `koanf:"mock_timeout_prob"`
	ErrorProb   float64 `koanf:"mock_error_prob"`
	StallS      float64 `koanf:"mock_stall_s"`
}

func loadConfig() (*mockConfig, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"mock_port":         "8090",
		"mock_timeout_prob": 0.10,
		"mock_error_prob":   0.25,
		"mock_stall_s":      5.0,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}
	err := k.Load(env.Provider("MOCK_", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, err
	}

	cfg := &mockConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type chargeRequest struct {
	PaymentID int64   `json:"payment_id"`
	UserID    int64   `json:"user_id"`
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	stall := time.Duration(cfg.StallS * float64(time.Second))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pay", func(w http.ResponseWriter, r *http.Request) {
		var req chargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		roll := rand.Float64()
		switch {
		case roll < cfg.TimeoutProb:
			logger.Info("simulating timeout", "payment_id", req.PaymentID, "stall", stall)
			time.Sleep(stall)
			w.WriteHeader(http.StatusOK)
		case roll < cfg.TimeoutProb+cfg.ErrorProb:
			logger.Info("simulating gateway error", "payment_id", req.PaymentID)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		default:
			logger.Info("charge accepted",
				"payment_id", req.PaymentID,
				"user_id", req.UserID,
				"amount", req.Amount,
				"type", req.Type,
			)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	})

	addr := "0.0.0.0:" + cfg.Port
	logger.Info("mock gateway listening", "addr", addr,
		"timeout_prob", cfg.TimeoutProb, "error_prob", cfg.ErrorProb)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
