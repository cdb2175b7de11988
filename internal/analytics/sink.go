package analytics

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// Writer persists one batch of events; satisfied by *Client. Narrowed
// per the repository port pattern used elsewhere so Sink's batching
// logic is testable without a live ClickHouse instance.
type Writer interface {
	WriteBatch(ctx context.Context, batch []model.Event) error
}

// Sink drains a channel of events, appending each as a row in
// ClickHouse's events table. A batch is flushed when it reaches
// batchSize events, when the channel closes, or when ctx is cancelled;
// there is no time-based flush, so a partial batch waits for one of
// those. This trades visibility lag for far fewer round trips than one
// INSERT per event.
type Sink struct {
	writer       Writer
	log          zerolog.Logger
	batchSize    int
	flushedCount int64
	droppedCount int64
}

// DefaultBatchSize bounds how many events accumulate before a flush.
const DefaultBatchSize = 200

// NewSink builds a Sink writing through writer.
func NewSink(writer Writer, log zerolog.Logger) *Sink {
	return &Sink{writer: writer, log: log.With().Str("component", "analytics").Logger(), batchSize: DefaultBatchSize}
}

// Run drains ch until it closes or ctx is cancelled, flushing batches
// of up to s.batchSize events.
func (s *Sink) Run(ctx context.Context, ch <-chan model.Event) {
	batch := make([]model.Event, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.writer.WriteBatch(ctx, batch); err != nil {
			s.droppedCount += int64(len(batch))
			s.log.Warn().Err(err).Int("batch_size", len(batch)).Msg("writing event batch to clickhouse failed")
		} else {
			s.flushedCount += int64(len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case evt, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, evt)
			if len(batch) >= s.batchSize {
				flush()
			}
		}
	}
}

// Flushed returns the count of events successfully written.
func (s *Sink) Flushed() int64 { return s.flushedCount }

// Dropped returns the count of events lost to a failed batch write; a
// failure here never blocks or retries, since analytics is a
// best-effort fan-out, not the system of record (§4.10).
func (s *Sink) Dropped() int64 { return s.droppedCount }

// WriteBatch inserts one row per event inside a single transaction.
func (c *Client) WriteBatch(ctx context.Context, batch []model.Event) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (id, correlation_id, server_id, event_type, occurred_at, data) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, evt := range batch {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			evt.ID.String(), evt.CorrelationID.String(), int64(evt.ServerID),
			string(evt.Data.EventType()), evt.Timestamp, string(data),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
