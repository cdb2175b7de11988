// Command hlstats-migrate applies pending Postgres and ClickHouse
// schema migrations and exits; it never starts the daemon itself.
//
// Grounded on the teacher's cmd/server/main.go, which runs
// db.Migrate inline before starting its HTTP service — pulled out
// here into its own command so an operator (or a deploy pipeline) can
// run migrations independent of the daemon's lifecycle.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/analytics"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/config"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/logger"

	dbpkg "github.com/jstnmthw/hlstatsnext-sub008/db"
)

func main() {
	skipClickHouse := flag.Bool("skip-clickhouse", false, "skip the ClickHouse analytics migration")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	if err := logger.Setup(ctx, cfg.Log.Level, cfg.Log.Pretty, cfg.Log.NoColor, cfg.Log.File); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, *skipClickHouse); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Msg("migrations applied")
}

func run(ctx context.Context, cfg *config.Struct, skipClickHouse bool) error {
	dsn := dbpkg.DSN(cfg.Db.Host, cfg.Db.Port, cfg.Db.User, cfg.Db.Pass, cfg.Db.Name)
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer database.Close()

	if err := database.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}

	log.Info().Msg("migrating postgres schema")
	if err := dbpkg.Migrate(database, log.Logger, cfg.Db.Migrate.Verbose); err != nil {
		return fmt.Errorf("migrating postgres: %w", err)
	}

	if skipClickHouse {
		return nil
	}

	chClient, err := analytics.NewClient(analytics.Config{
		Host:     cfg.ClickHouse.Host,
		Port:     cfg.ClickHouse.Port,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
		Debug:    cfg.ClickHouse.Debug,
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("connecting to clickhouse: %w", err)
	}
	defer chClient.Close()

	log.Info().Msg("migrating clickhouse schema")
	if err := analytics.Migrate(chClient, cfg.ClickHouse.Migrate.Verbose); err != nil {
		return fmt.Errorf("migrating clickhouse: %w", err)
	}
	return nil
}
