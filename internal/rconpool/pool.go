// Package rconpool maintains a server-id → *rcon.Connection mapping
// with at-most-one concurrent connect per server, exponential-backoff
// retry, and a periodic status-scrape scheduler (§4.3).
//
// Grounded on the teacher's internal/rcon_manager/rcon_manager.go: a
// mutex-guarded map of per-server connections, a manager-level context
// used to cancel background loops, and per-connection serialization —
// generalized here to the pending-creation de-dup and retry policy the
// teacher's manager does not need (Squad-aegis dials eagerly, once).
package rconpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/rcon"
)

const (
	defaultMaxRetries        = 3
	defaultBackoffBaseMs     = 1000
	defaultBackoffCapMs      = 5000
	defaultStatusInterval    = 30 * time.Second
	defaultActiveWindow      = 60 * time.Minute
	defaultSendQueueCapacity = 8
)

// ServerLookup resolves the dial parameters for a server-id, so the
// pool never depends on the repository directly.
type ServerLookup interface {
	ServerDialInfo(ctx context.Context, id model.ServerID) (DialInfo, error)
}

// DialInfo is everything the pool needs to connect to one server.
type DialInfo struct {
	Address        string
	Port           int
	Password       string
	Engine         model.EngineKind
	IgnoreBots     bool
	LastEventAt    time.Time
	HasCredentials bool
}

// StatusSink receives synthetic events produced by the scrape loop,
// decoupling the pool from the pipeline's queue type. PublishMapChange
// is called in addition to PublishStatus when a scrape's reported map
// differs from the server's last-known one (S6).
type StatusSink interface {
	PublishStatus(ctx context.Context, serverID model.ServerID, status model.ServerStatusData)
	PublishMapChange(ctx context.Context, serverID model.ServerID, change model.MapChangeData)
}

// Config tunes retry policy and the scrape scheduler.
type Config struct {
	MaxRetries        int
	BackoffBaseMs     int
	BackoffCapMs      int
	StatusInterval    time.Duration
	ActiveWindow      time.Duration
	SendQueueCapacity int
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BackoffBaseMs == 0 {
		c.BackoffBaseMs = defaultBackoffBaseMs
	}
	if c.BackoffCapMs == 0 {
		c.BackoffCapMs = defaultBackoffCapMs
	}
	if c.StatusInterval == 0 {
		c.StatusInterval = defaultStatusInterval
	}
	if c.ActiveWindow == 0 {
		c.ActiveWindow = defaultActiveWindow
	}
	if c.SendQueueCapacity == 0 {
		c.SendQueueCapacity = defaultSendQueueCapacity
	}
	return c
}

// pendingConnect is the shared future every racing caller for the same
// server-id awaits (§4.3, §5 mutual exclusion).
type pendingConnect struct {
	done chan struct{}
	conn *rcon.Connection
	err  error
}

// Pool is the RCON connection pool.
type Pool struct {
	cfg    Config
	lookup ServerLookup
	sink   StatusSink
	log    zerolog.Logger

	mu       sync.Mutex
	conns    map[model.ServerID]*rcon.Connection
	pending  map[model.ServerID]*pendingConnect
	lastScrp map[model.ServerID]time.Time

	now func() time.Time

	reconnects atomic.Int64
	dropped    atomic.Int64

	queueMu      sync.Mutex
	queues       map[model.ServerID]*sendQueue
	queueDrops   atomic.Int64
	sendFailures atomic.Int64
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// sendQueue is one server's bounded, fire-and-forget RCON command
// queue (§5 back-pressure): Enqueue drops the oldest pending command
// when ch is full rather than blocking the caller.
type sendQueue struct {
	mu sync.Mutex
	ch chan string
}

// New builds a pool. lookup and sink may be nil in tests that only
// exercise connect/execute, not status scraping.
func New(cfg Config, lookup ServerLookup, sink StatusSink, log zerolog.Logger) *Pool {
	return &Pool{
		cfg:      cfg.withDefaults(),
		lookup:   lookup,
		sink:     sink,
		log:      log,
		conns:    make(map[model.ServerID]*rcon.Connection),
		pending:  make(map[model.ServerID]*pendingConnect),
		lastScrp: make(map[model.ServerID]time.Time),
		now:      time.Now,
		queues:   make(map[model.ServerID]*sendQueue),
		stopCh:   make(chan struct{}),
	}
}

// Execute runs command against the named server, connecting (with
// retry) if necessary.
func (p *Pool) Execute(ctx context.Context, serverID model.ServerID, command string) (string, error) {
	conn, err := p.getOrConnect(ctx, serverID)
	if err != nil {
		return "", err
	}
	body, err := conn.Execute(ctx, command)
	if err != nil {
		if conn.State() == rcon.StateClosed {
			p.mu.Lock()
			delete(p.conns, serverID)
			p.mu.Unlock()
		}
		return "", err
	}
	return body, nil
}

// Enqueue hands command to serverID's bounded send queue and returns
// immediately; a background worker drains it through Execute one
// command at a time. When the queue is already full, the oldest
// pending command is dropped (and queueDrops incremented) to make
// room, per the notification dispatcher's back-pressure contract:
// a live server's newest notification matters more than a stale one.
func (p *Pool) Enqueue(serverID model.ServerID, command string) {
	q := p.queueFor(serverID)

	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case q.ch <- command:
		return
	default:
	}
	select {
	case <-q.ch:
		p.queueDrops.Add(1)
	default:
	}
	select {
	case q.ch <- command:
	default:
		p.queueDrops.Add(1)
	}
}

// queueFor returns serverID's send queue, lazily starting its drain
// worker on first use.
func (p *Pool) queueFor(serverID model.ServerID) *sendQueue {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	q, ok := p.queues[serverID]
	if ok {
		return q
	}
	q = &sendQueue{ch: make(chan string, p.cfg.SendQueueCapacity)}
	p.queues[serverID] = q
	p.wg.Add(1)
	go p.drainQueue(serverID, q)
	return q
}

// drainQueue runs until Stop is called, executing queued commands one
// at a time against serverID. A send failure is logged and counted;
// §7 "logged only, never retried" applies here exactly as it does to
// notification delivery.
func (p *Pool) drainQueue(serverID model.ServerID, q *sendQueue) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case command, ok := <-q.ch:
			if !ok {
				return
			}
			if _, err := p.Execute(context.Background(), serverID, command); err != nil {
				p.sendFailures.Add(1)
				p.log.Warn().
					Int64("server_id", int64(serverID)).
					Err(err).
					Msg("queued rcon command failed")
			}
		}
	}
}

// QueueDrops counts commands dropped because a server's send queue
// was full when Enqueue was called.
func (p *Pool) QueueDrops() int64 { return p.queueDrops.Load() }

// SendFailures counts queued commands whose Execute attempt failed.
func (p *Pool) SendFailures() int64 { return p.sendFailures.Load() }

// Stop signals every queue's drain worker to exit and waits for them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// getOrConnect returns the pooled connection for serverID, de-duplicating
// concurrent connect attempts via the pending-creation registry.
func (p *Pool) getOrConnect(ctx context.Context, serverID model.ServerID) (*rcon.Connection, error) {
	p.mu.Lock()
	if conn, ok := p.conns[serverID]; ok && conn.IsConnected() {
		p.mu.Unlock()
		return conn, nil
	}
	if pc, ok := p.pending[serverID]; ok {
		p.mu.Unlock()
		<-pc.done
		return pc.conn, pc.err
	}

	pc := &pendingConnect{done: make(chan struct{})}
	p.pending[serverID] = pc
	p.mu.Unlock()

	conn, err := p.connectWithRetry(ctx, serverID)

	p.mu.Lock()
	delete(p.pending, serverID)
	if err == nil {
		p.conns[serverID] = conn
	}
	p.mu.Unlock()

	pc.conn, pc.err = conn, err
	close(pc.done)
	return conn, err
}

func (p *Pool) connectWithRetry(ctx context.Context, serverID model.ServerID) (*rcon.Connection, error) {
	if p.lookup == nil {
		return nil, fmt.Errorf("rconpool: no server lookup configured")
	}
	info, err := p.lookup.ServerDialInfo(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("rconpool: resolving dial info: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		conn := rcon.New(rcon.Config{
			Address:  info.Address,
			Port:     info.Port,
			Password: info.Password,
			Engine:   info.Engine,
		})
		if err := conn.Connect(ctx); err != nil {
			lastErr = err
			p.log.Warn().
				Int64("server_id", int64(serverID)).
				Int("attempt", attempt).
				Err(err).
				Msg("rcon connect attempt failed")

			if attempt == p.cfg.MaxRetries {
				break
			}
			delay := backoffDelay(attempt, p.cfg.BackoffBaseMs, p.cfg.BackoffCapMs)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		if attempt > 1 {
			p.reconnects.Add(1)
		}
		return conn, nil
	}
	p.dropped.Add(1)
	return nil, fmt.Errorf("rconpool: connect failed for server %d: %w", serverID, lastErr)
}

// Reconnects counts successful connects that needed more than one
// attempt.
func (p *Pool) Reconnects() int64 { return p.reconnects.Load() }

// Dropped counts connect attempts that exhausted every retry.
func (p *Pool) Dropped() int64 { return p.dropped.Load() }

// backoffDelay computes min(base * 2^(n-1), cap) for attempt n (1-based).
func backoffDelay(attempt, baseMs, capMs int) time.Duration {
	ms := baseMs
	for i := 1; i < attempt; i++ {
		ms *= 2
		if ms >= capMs {
			ms = capMs
			break
		}
	}
	if ms > capMs {
		ms = capMs
	}
	return time.Duration(ms) * time.Millisecond
}

// GetStatus issues "status" against serverID and returns the raw
// response for callers that want to parse it themselves.
func (p *Pool) GetStatus(ctx context.Context, serverID model.ServerID) (string, error) {
	return p.Execute(ctx, serverID, "status")
}

// DisconnectAll tears down every pooled connection; used on graceful
// shutdown.
func (p *Pool) DisconnectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, conn := range p.conns {
		conn.Disconnect()
		delete(p.conns, id)
	}
}

// Len reports how many connections are currently pooled (tests/metrics).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
