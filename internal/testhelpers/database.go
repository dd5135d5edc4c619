// Package testhelpers spins up a throwaway PostgreSQL container for
// integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/paysys/payment-service/internal/config"
	"github.com/paysys/payment-service/internal/infrastructure/persistence"
)

type TestDatabase struct {
	Container   testcontainers.Container
	DB          *persistence.DB
	DatabaseURL string
}

func SetupTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	databaseURL := fmt.Sprintf("postgres://testuser:testpass@%s:%d/testdb?sslmode=disable", host, port.Int())

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	cfg := &config.Config{
		DatabaseURL: databaseURL,
		DBMaxConns:  10,
		DBMinConns:  2,
	}

	db, err := persistence.Connect(ctx, cfg, logger)
	require.NoError(t, err)

	_, err = persistence.Migrate(databaseURL)
	require.NoError(t, err)

	return &TestDatabase{
		Container:   container,
		DB:          db,
		DatabaseURL: databaseURL,
	}
}

func (td *TestDatabase) Cleanup(t *testing.T) {
	ctx := context.Background()
	td.DB.Close()
	require.NoError(t, td.Container.Terminate(ctx))
}

func (td *TestDatabase) CleanTables(t *testing.T) {
	ctx := context.Background()

	_, err := td.DB.Pool.Exec(ctx,
		"TRUNCATE TABLE payment_dlq, payment_tasks, transactions, payments, users RESTART IDENTITY CASCADE;")
	require.NoError(t, err)
}
