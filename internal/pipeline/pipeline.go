// Package pipeline implements the bounded, per-server-ordered event
// processing stage between ingress and persistence (§4.6): a fixed
// worker pool partitioned by server id so events for one server are
// always handled in the order they arrived, while different servers
// process concurrently.
//
// Grounded on the teacher's internal/event_manager (a single buffered
// channel feeding a background goroutine) and internal/identity's
// Worker (start/stop lifecycle over a context), generalized from one
// shared queue to N partitioned queues so ordering survives
// concurrency, which the spec requires and the teacher's flat queue
// does not provide.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// DefaultQueueCapacity is the total number of in-flight events the
// pipeline will buffer before Submit blocks (§4.6 backpressure: the
// queue never drops, it applies backpressure to the caller).
const DefaultQueueCapacity = 4096

// DefaultMaxWorkers bounds worker count when GOMAXPROCS is large.
const DefaultMaxWorkers = 8

// Config tunes queue sizing and worker count.
type Config struct {
	QueueCapacity int
	Workers       int
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
		if c.Workers > DefaultMaxWorkers {
			c.Workers = DefaultMaxWorkers
		}
		if c.Workers < 1 {
			c.Workers = 1
		}
	}
	return c
}

// Pipeline fans events out across a fixed set of partitioned worker
// queues and runs each through the handler Chain.
type Pipeline struct {
	cfg     Config
	chain   *Chain
	log     zerolog.Logger
	queues  []chan model.Event
	wg      sync.WaitGroup
	dedup   *dedupSet
	metrics Metrics
}

// Metrics are the counters the pipeline maintains for observability;
// all are safe for concurrent use. A real deployment wires these
// through to internal/metrics' Prometheus registry.
type Metrics struct {
	Processed  Counter
	Duplicates Counter
	Failed     Counter
}

// SetChain attaches the handler chain a running Pipeline dispatches
// events to. Exists alongside the chain parameter on New so a caller
// can wire a chain's own dependencies (e.g. a notifier that itself
// needs to reach back into this Pipeline) before the chain exists,
// breaking what would otherwise be a construction cycle.
func (p *Pipeline) SetChain(chain *Chain) {
	p.chain = chain
}

// New builds a Pipeline. chain may be nil and attached later via
// SetChain, as long as it is set before Run starts processing events.
// Call Run in its own goroutine to start the worker pool, then Submit
// events; cancel Run's context to stop it.
func New(cfg Config, chain *Chain, log zerolog.Logger) *Pipeline {
	cfg = cfg.withDefaults()
	perQueue := cfg.QueueCapacity / cfg.Workers
	if perQueue < 1 {
		perQueue = 1
	}

	queues := make([]chan model.Event, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan model.Event, perQueue)
	}

	return &Pipeline{
		cfg:    cfg,
		chain:  chain,
		log:    log.With().Str("component", "pipeline").Logger(),
		queues: queues,
		dedup:  newDedupSet(cfg.QueueCapacity * 4),
	}
}

// partition maps a server id onto one of the worker queues; every
// event for the same server always lands on the same queue, so FIFO
// per server falls out of the channel's own ordering guarantee.
func (p *Pipeline) partition(serverID model.ServerID) int {
	n := len(p.queues)
	idx := int(serverID) % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// Submit enqueues an event, blocking (backpressure, never dropping)
// if that server's partition is full, until ctx is done.
func (p *Pipeline) Submit(ctx context.Context, evt model.Event) error {
	q := p.queues[p.partition(evt.ServerID)]
	select {
	case q <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts one goroutine per partition and blocks until ctx is
// cancelled and every partition has drained.
func (p *Pipeline) Run(ctx context.Context) {
	for i, q := range p.queues {
		p.wg.Add(1)
		go p.worker(ctx, i, q)
	}
	p.wg.Wait()
}

func (p *Pipeline) worker(ctx context.Context, index int, q chan model.Event) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", index).Logger()

	for {
		select {
		case evt := <-q:
			p.process(ctx, log, evt)
		case <-ctx.Done():
			// Drain what's already queued before exiting so a shutdown
			// never silently discards accepted events.
			for {
				select {
				case evt := <-q:
					p.process(context.Background(), log, evt)
				default:
					return
				}
			}
		}
	}
}

// Snapshot returns the current cumulative counters, for a caller (e.g.
// a Prometheus bridge) to sample periodically.
func (p *Pipeline) Snapshot() (processed, duplicates, failed int64) {
	return p.metrics.Processed.Load(), p.metrics.Duplicates.Load(), p.metrics.Failed.Load()
}

func (p *Pipeline) process(ctx context.Context, log zerolog.Logger, evt model.Event) {
	if p.dedup.seen(evt.ID) {
		p.metrics.Duplicates.Inc()
		log.Debug().Str("event_id", evt.ID.String()).Msg("dropping duplicate event")
		return
	}

	if err := p.chain.Run(ctx, evt); err != nil {
		p.metrics.Failed.Inc()
		log.Error().Err(err).Str("event_id", evt.ID.String()).Str("event_type", string(evt.Type())).Msg("event processing failed")
		return
	}
	p.metrics.Processed.Inc()
}
