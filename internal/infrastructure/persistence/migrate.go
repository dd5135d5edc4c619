package persistence

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTableName = "schema_migrations"

// Migrate applies all pending migrations. It opens its own database/sql
// connection because sql-migrate does not speak the native pgx interface.
func Migrate(databaseURL string) (int, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return 0, fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	ms := migrate.MigrationSet{TableName: migrationsTableName}
	src := migrate.EmbedFileSystemMigrationSource{FileSystem: migrationsFS, Root: "migrations"}

	n, err := ms.Exec(db, "postgres", src, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return n, nil
}
