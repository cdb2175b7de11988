package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// migrationsLogger adapts zerolog to migrate.Logger.
type migrationsLogger struct {
	log     zerolog.Logger
	verbose bool
}

func (ml *migrationsLogger) Printf(format string, v ...any) { ml.log.Info().Msgf(format, v...) }
func (ml *migrationsLogger) Verbose() bool                  { return ml.verbose }

// DSN builds a postgres connection string.
func DSN(host string, port int, user, pass, name string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", user, pass, host, port, name)
}

// Migrate applies every pending migration in Migrations against database.
func Migrate(database *sql.DB, log zerolog.Logger, verbose bool) error {
	driver, err := postgres.WithInstance(database, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db: creating postgres driver: %w", err)
	}

	source, err := iofs.New(Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("db: creating migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("db: creating migrate instance: %w", err)
	}
	m.Log = &migrationsLogger{log: log, verbose: verbose}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("db: migration failed: %w", err)
	}
	return nil
}
