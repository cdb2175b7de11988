package rconadapter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// submitter is the slice of pipeline.Pipeline this package depends on;
// satisfied by *pipeline.Pipeline without importing it directly, same
// narrowing internal/ingest.Submitter applies.
type submitter interface {
	Submit(ctx context.Context, evt model.Event) error
}

// StatusPublisher turns a status-scrape result into a synthetic
// ServerStatus event and hands it to the pipeline exactly like any
// event the ingest listener parsed off the wire.
type StatusPublisher struct {
	sink submitter
	log  zerolog.Logger
}

// NewStatusPublisher builds a StatusPublisher bound to sink.
func NewStatusPublisher(sink submitter, log zerolog.Logger) *StatusPublisher {
	return &StatusPublisher{sink: sink, log: log.With().Str("component", "rconadapter").Logger()}
}

// PublishStatus implements rconpool.StatusSink.
func (p *StatusPublisher) PublishStatus(ctx context.Context, serverID model.ServerID, status model.ServerStatusData) {
	evt := model.NewEvent(serverID, time.Now(), model.Meta{}, status)
	if err := p.sink.Submit(ctx, evt); err != nil {
		p.log.Warn().Err(err).Int64("server_id", int64(serverID)).Msg("submitting status event failed")
	}
}

// PublishMapChange implements rconpool.StatusSink.
func (p *StatusPublisher) PublishMapChange(ctx context.Context, serverID model.ServerID, change model.MapChangeData) {
	evt := model.NewEvent(serverID, time.Now(), model.Meta{}, change)
	if err := p.sink.Submit(ctx, evt); err != nil {
		p.log.Warn().Err(err).Int64("server_id", int64(serverID)).Msg("submitting map change event failed")
	}
}
