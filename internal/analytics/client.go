// Package analytics subscribes to the event bus and appends every
// persisted event to ClickHouse for later ad-hoc analysis (§4.10):
// a write-behind fan-out that never sits on the pipeline's critical
// path.
//
// Grounded on the teacher's internal/clickhouse (client.go's
// clickhouse-go/v2 connection setup and migrations.go's golang-migrate
// wiring), trimmed from a general-purpose workflow-log store to a
// single append-only events table.
package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"
)

// Config holds the ClickHouse connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// Client wraps a ClickHouse connection opened through database/sql,
// the same style the teacher's internal/clickhouse.Client uses.
type Client struct {
	conn *sql.DB
	log  zerolog.Logger
}

// NewClient dials ClickHouse at cfg.Host:cfg.Port.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9000
	}
	if cfg.Database == "" {
		cfg.Database = "hlstatsd"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 30 * time.Second,
		Debug:       cfg.Debug,
	}

	conn := clickhouse.OpenDB(options)
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("analytics: connecting to clickhouse: %w", err)
	}

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database).Msg("connected to clickhouse")
	return &Client{conn: conn, log: log}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

// DB exposes the underlying *sql.DB for db/migrate.go-style migration
// runners that take a clickhouse driver instead of postgres.
func (c *Client) DB() *sql.DB { return c.conn }
