package analytics

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

type migrationsLogger struct {
	log     zerolog.Logger
	verbose bool
}

func (ml *migrationsLogger) Printf(format string, v ...any) { ml.log.Info().Msgf(format, v...) }
func (ml *migrationsLogger) Verbose() bool                  { return ml.verbose }

// Migrate applies every pending migration against the client's
// connection, grounded on the teacher's internal/clickhouse.Migrate.
func Migrate(client *Client, verbose bool) error {
	driver, err := clickhouse.WithInstance(client.conn, &clickhouse.Config{
		MigrationsTable:       "migrations",
		MultiStatementEnabled: true,
	})
	if err != nil {
		return fmt.Errorf("analytics: creating clickhouse driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("analytics: creating migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "clickhouse", driver)
	if err != nil {
		return fmt.Errorf("analytics: creating migrate instance: %w", err)
	}
	m.Log = &migrationsLogger{log: client.log, verbose: verbose}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("analytics: migration failed: %w", err)
	}
	return nil
}
