package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema of the database at dsn up to date.
func RunMigrations(dialect Dialect, dsn string) error {
	// separate connection: closing the migrator closes its database handle
	migrateDB, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	case DialectPostgres:
		driver, err = postgres.WithInstance(migrateDB, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", dialect, err)
	}

	d, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
