package config

import (
	"context"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConfig builds the pgxpool configuration from DATABASE_URL and the pool
// knobs. The shopspring decimal codec is registered on every connection so
// numeric columns scan straight into decimal.Decimal.
func (c *Config) PgxConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = int32(c.DBMaxConns)
	cfg.MinConns = int32(c.DBMinConns)
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	return cfg, nil
}
