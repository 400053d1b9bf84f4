package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrations are kept per dialect under migrations/<driver name>/.
//
//go:embed migrations
var migrationFS embed.FS

// Migrator applies the embedded schema migrations. It opens its own
// connection pool because golang-migrate closes the database it is given.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator prepares a Migrator for the database described by cfg.
// Only DriverName and DSN are used. Callers must Close it.
func NewMigrator(cfg Config, logger *slog.Logger) (*Migrator, error) {
	dialect, err := LookupDialect(cfg.DriverName)
	if err != nil {
		return nil, err
	}
	dsn, err := dialect.NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: migrate: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations/"+dialect.Name())
	if err != nil {
		return nil, fmt.Errorf("db: migrate: source: %w", err)
	}

	sqldb, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("db: migrate: open: %w", err)
	}

	drv, err := migrationDriver(dialect, sqldb)
	if err != nil {
		_ = src.Close()
		_ = sqldb.Close()
		return nil, fmt.Errorf("db: migrate: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.Name(), drv)
	if err != nil {
		_ = src.Close()
		_ = drv.Close()
		return nil, fmt.Errorf("db: migrate: init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.Log = &migrateLogger{logger: logger}

	return &Migrator{m: m}, nil
}

func migrationDriver(d Dialect, sqldb *sql.DB) (database.Driver, error) {
	switch d.(type) {
	case SQLiteDialect:
		return migratesqlite.WithInstance(sqldb, &migratesqlite.Config{})
	case PostgresDialect:
		return migratepg.WithInstance(sqldb, &migratepg.Config{})
	case MySQLDialect:
		return migratemysql.WithInstance(sqldb, &migratemysql.Config{})
	}
	return nil, fmt.Errorf("no migration driver for %q", d.Name())
}

// Up applies all pending migrations. Being already up to date is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db: migrate up: %w", err)
	}
	return nil
}

// Down rolls back the given number of migrations.
func (mg *Migrator) Down(steps int) error {
	if steps < 1 {
		return fmt.Errorf("db: migrate down: steps must be positive, got %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db: migrate down: %w", err)
	}
	return nil
}

// Version returns the current schema version. A database without any
// applied migration reports version 0.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("db: migrate version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the schema version without running migrations, clearing the
// dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("db: migrate force: %w", err)
	}
	return nil
}

// Drop removes every table in the database.
func (mg *Migrator) Drop() error {
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("db: migrate drop: %w", err)
	}
	return nil
}

// Close releases the source and the migration connection pool.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Migrate brings the schema described by cfg up to date.
func Migrate(cfg Config, logger *slog.Logger) error {
	mg, err := NewMigrator(cfg, logger)
	if err != nil {
		return err
	}
	upErr := mg.Up()
	closeErr := mg.Close()
	if upErr != nil {
		return upErr
	}
	return closeErr
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info("db: migrate: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool { return false }
