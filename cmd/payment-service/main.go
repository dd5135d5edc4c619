package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paysys/payment-service/internal/application/services"
	"github.com/paysys/payment-service/internal/config"
	"github.com/paysys/payment-service/internal/infrastructure/gateway"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
	"github.com/paysys/payment-service/internal/infrastructure/persistence/postgres"
	"github.com/paysys/payment-service/internal/interfaces/rest"
	"github.com/paysys/payment-service/internal/interfaces/rest/middleware"
	"github.com/paysys/payment-service/internal/metrics"
	"github.com/paysys/payment-service/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment service",
		"port", cfg.HTTPPort,
		"workers", cfg.WorkerCount,
		"log_level", cfg.LogLevel,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := persistence.Migrate(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "count", applied)

	store := postgres.NewStore(db)
	registry := metrics.NewRegistry()
	gatewayClient := gateway.NewHTTPClient(cfg.GatewayURL, cfg.GatewayTimeout())

	depositService := services.NewDepositService(store, registry, cfg.FeeRate(), logger)
	withdrawService := services.NewWithdrawService(store, registry, cfg.FeeRate(), logger)
	queryService := services.NewQueryService(store)
	userService := services.NewUserService(store)

	handlers := rest.NewHandlers(
		depositService,
		withdrawService,
		queryService,
		userService,
		db,
		registry,
		logger,
	)

	handler := http.Handler(handlers.Routes())
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.HTTPWriteTimeout())(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout(),
		WriteTimeout: cfg.HTTPWriteTimeout(),
		IdleTimeout:  cfg.HTTPIdleTimeout(),
	}

	processor := worker.NewProcessor(
		store,
		gatewayClient,
		registry,
		worker.RetryPolicy{
			Base:        cfg.BackoffBase(),
			Max:         cfg.BackoffMax(),
			Jitter:      cfg.BackoffJitter(),
			MaxAttempts: cfg.MaxAttempts,
		},
		cfg.ProcessingTimeout(),
		logger,
	)

	pool := worker.NewPool(processor, worker.Config{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval(),
	}, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		pool.Start(workerCtx)
	}()

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	cancelWorkers()
	<-workersDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
