package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/shopspring/decimal"
)

// Config is loaded from flat environment variables. Durations arrive as
// float seconds (the *_S variables) and are exposed through the accessor
// methods below.
type Config struct {
	DatabaseURL string `koanf:"database_url" validate:"required"`
	DBMaxConns  int    `koanf:"db_max_conns" validate:"min=1"`
	DBMinConns  int    `koanf:"db_min_conns" validate:"min=0"`

	HTTPPort          string  `koanf:"http_port" validate:"required"`
	HTTPReadTimeoutS  float64 `koanf:"http_read_timeout_s" validate:"gt=0"`
	HTTPWriteTimeoutS float64 `koanf:"http_write_timeout_s" validate:"gt=0"`
	HTTPIdleTimeoutS  float64 `koanf:"http_idle_timeout_s" validate:"gt=0"`

	GatewayURL      string  `koanf:"payment_gateway_url" validate:"required"`
	GatewayTimeoutS float64 `koanf:"payment_gateway_timeout_s" validate:"gt=0"`

	MaxAttempts    int     `koanf:"gateway_max_attempts" validate:"min=1"`
	BackoffBaseS   float64 `koanf:"gateway_backoff_base_s" validate:"gt=0"`
	BackoffMaxS    float64 `koanf:"gateway_backoff_max_s" validate:"gt=0"`
	BackoffJitterS float64 `koanf:"gateway_backoff_jitter_s" validate:"min=0"`

	WorkerCount        int     `koanf:"worker_count" validate:"min=1"`
	PollIntervalS      float64 `koanf:"worker_poll_interval_s" validate:"gt=0"`
	ProcessingTimeoutS float64 `koanf:"worker_processing_timeout_s" validate:"gt=0"`
	TransactionFeePerc float64 `koanf:"transaction_fee_percent" validate:"min=0"`

	LogLevel string `koanf:"log_level"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"db_max_conns":                10,
		"db_min_conns":                2,
		"http_port":                   "8080",
		"http_read_timeout_s":         10.0,
		"http_write_timeout_s":        15.0,
		"http_idle_timeout_s":         60.0,
		"payment_gateway_timeout_s":   2.0,
		"gateway_max_attempts":        3,
		"gateway_backoff_base_s":      1.0,
		"gateway_backoff_max_s":       30.0,
		"gateway_backoff_jitter_s":    0.5,
		"worker_count":                4,
		"worker_poll_interval_s":      0.5,
		"worker_processing_timeout_s": 30.0,
		"transaction_fee_percent":     2.0,
		"log_level":                   "INFO",
	}
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		logger.Error("could not unmarshal config", "error", err)
		return nil, err
	}

	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return cfg, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (c *Config) HTTPReadTimeout() time.Duration   { return seconds(c.HTTPReadTimeoutS) }
func (c *Config) HTTPWriteTimeout() time.Duration  { return seconds(c.HTTPWriteTimeoutS) }
func (c *Config) HTTPIdleTimeout() time.Duration   { return seconds(c.HTTPIdleTimeoutS) }
func (c *Config) GatewayTimeout() time.Duration    { return seconds(c.GatewayTimeoutS) }
func (c *Config) BackoffBase() time.Duration       { return seconds(c.BackoffBaseS) }
func (c *Config) BackoffMax() time.Duration        { return seconds(c.BackoffMaxS) }
func (c *Config) BackoffJitter() time.Duration     { return seconds(c.BackoffJitterS) }
func (c *Config) PollInterval() time.Duration      { return seconds(c.PollIntervalS) }
func (c *Config) ProcessingTimeout() time.Duration { return seconds(c.ProcessingTimeoutS) }

// FeeRate normalizes TRANSACTION_FEE_PERCENT into a rate (2 -> 0.02).
func (c *Config) FeeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.TransactionFeePerc).Div(decimal.NewFromInt(100))
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.SlogLevel(),
	}))
}
