package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// EMBEDDED MIGRATIONS:
// The //go:embed directive compiles the SQL files into the binary, so the
// server never depends on its working directory to find them. Each dialect
// has its own directory because the DDL differs (AUTOINCREMENT vs IDENTITY,
// DATETIME vs TIMESTAMPTZ).
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// migrate brings the schema up to the latest version with golang-migrate.
//
// golang-migrate records the applied version in a schema_migrations table, so
// running this on every start is safe: an up-to-date database returns
// migrate.ErrNoChange, which is not a failure.
//
// WHICH POOL RUNS THE MIGRATIONS?
//   - Postgres: a separate, short-lived pool. The pgx migrate driver pins a
//     dedicated connection for its whole lifetime and closes the pool on
//     Close(), so it must not be handed the store's pool.
//   - SQLite: the store's own pool. A ":memory:" database exists per
//     connection, so a second pool would migrate a different database. The
//     migrator is never closed here because closing it closes that pool.
func (db *DB) migrate(dsn string) error {
	src, err := iofs.New(migrationFiles, "migrations/"+string(db.dialect))
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	var driver database.Driver
	switch db.dialect {
	case DialectPostgres:
		migConn, err := sql.Open(db.dialect.driverName(), dsn)
		if err != nil {
			return fmt.Errorf("opening migration connection: %w", err)
		}
		driver, err = migratepgx.WithInstance(migConn, &migratepgx.Config{})
		if err != nil {
			migConn.Close()
			return fmt.Errorf("creating postgres migration driver: %w", err)
		}
	default:
		driver, err = migratesqlite.WithInstance(db.conn.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("creating sqlite migration driver: %w", err)
		}
	}

	m, err := migrate.NewWithInstance("iofs", src, string(db.dialect), driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if db.dialect == DialectPostgres {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
