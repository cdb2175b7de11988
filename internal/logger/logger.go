// Package logger configures the daemon's global zerolog logger.
//
// Grounded on the teacher's internal/shared/logger.SetupGlobalLogger:
// the same file-vs-stderr-vs-stdout switch, 6543/logfile-open for the
// on-disk case, and a console writer when pretty output is requested.
// Caller-logging below debug level is dropped here since the daemon
// logs structured fields (server id, event id) at every call site
// rather than leaning on source location.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	logfile "github.com/6543/logfile-open"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global zerolog logger at stderr, stdout, or a file,
// and sets the process-wide minimum level.
func Setup(ctx context.Context, level string, pretty bool, noColor bool, file string) error {
	var out io.ReadWriteCloser
	switch file {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		opened, err := logfile.OpenFileWithContext(ctx, file, 0o660)
		if err != nil {
			return fmt.Errorf("logger: open log file %q: %w", file, err)
		}
		out = opened
		noColor = true
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, NoColor: noColor})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: unknown level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		log.Logger = log.With().Caller().Logger()
	}

	return nil
}
