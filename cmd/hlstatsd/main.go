// Command hlstatsd is the daemon: it binds the UDP ingress listener,
// runs the partitioned event pipeline, pools RCON connections back to
// every known server, and fans persisted events out to the ClickHouse
// analytics sink — wiring every package this repo builds into one
// running process.
//
// Grounded on the teacher's cmd/server/main.go: a signal-cancellable
// root context, zerolog setup before anything else logs, database
// migration before the rest of the process starts, and an
// errgroup.Group collecting every long-running service so the first
// one to fail tears down the rest.
package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	dbpkg "github.com/jstnmthw/hlstatsnext-sub008/db"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/analytics"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/cache"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/config"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/cryptoutil"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/eventbus"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/ingest"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/logger"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/metrics"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/notify"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/pipeline"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/rconadapter"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/rconpool"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/scorer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if err := logger.Setup(ctx, cfg.Log.Level, cfg.Log.Pretty, cfg.Log.NoColor, cfg.Log.File); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("hlstatsd exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Struct) error {
	log.Info().Msg("starting hlstatsd")

	dsn := dbpkg.DSN(cfg.Db.Host, cfg.Db.Port, cfg.Db.User, cfg.Db.Pass, cfg.Db.Name)
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer database.Close()
	if err := database.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}
	if err := dbpkg.Migrate(database, log.Logger, cfg.Db.Migrate.Verbose); err != nil {
		return fmt.Errorf("migrating postgres: %w", err)
	}

	reg := metrics.New()

	valkeyClient, err := cache.NewClient(cache.Config{
		Host:     cfg.Valkey.Host,
		Port:     cfg.Valkey.Port,
		Password: cfg.Valkey.Password,
		Database: cfg.Valkey.Database,
	})
	if err != nil {
		return fmt.Errorf("connecting to valkey: %w", err)
	}
	defer valkeyClient.Close()

	baseRepo := repository.NewPostgres(database)
	repo := cache.NewLookupRepository(baseRepo, valkeyClient, cache.DefaultTTL, log.Logger)
	activity := cache.NewActivityTracker(valkeyClient)

	var sealer *cryptoutil.Sealer
	if cfg.Crypto.SealKeyBase64 != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Crypto.SealKeyBase64)
		if err != nil {
			return fmt.Errorf("decoding CRYPTO_SEAL_KEY_BASE64: %w", err)
		}
		sealer, err = cryptoutil.NewSealer(key)
		if err != nil {
			return fmt.Errorf("building rcon password sealer: %w", err)
		}
	}

	bus := eventbus.New(ctx, eventbus.DefaultQueueCapacity, log.Logger)

	pipelineCfg := pipeline.Config{QueueCapacity: cfg.Pipeline.QueueCapacity, Workers: cfg.Pipeline.Workers}
	events := pipeline.New(pipelineCfg, nil, log.Logger)

	poolCfg := rconpool.Config{
		MaxRetries:        cfg.RconPool.MaxRetries,
		BackoffBaseMs:     cfg.RconPool.BackoffBaseMs,
		BackoffCapMs:      cfg.RconPool.BackoffCapMs,
		StatusInterval:    time.Duration(cfg.RconPool.StatusIntervalSeconds) * time.Second,
		ActiveWindow:      time.Duration(cfg.RconPool.ActiveWindowMinutes) * time.Minute,
		SendQueueCapacity: cfg.RconPool.SendQueueCapacity,
	}
	lookup := rconadapter.New(repo, sealer, activity)
	statusPublisher := rconadapter.NewStatusPublisher(events, log.Logger)
	pool := rconpool.New(poolCfg, lookup, statusPublisher, log.Logger)
	defer pool.DisconnectAll()
	defer pool.Stop()

	dispatcher := notify.New(repo, pool, notify.DefaultTemplates(), log.Logger)

	chain := pipeline.NewChain(repo, scorer.New(scorer.Config{}), dispatcher)
	chain.SetPublisher(bus)
	events.SetChain(chain)

	auth := ingest.NewAuthenticator(repo)
	orchestrator := ingest.NewOrchestrator(repo)
	listener, err := ingest.Listen(cfg.Ingest.BindAddr, auth, orchestrator, nil, log.Logger)
	if err != nil {
		return fmt.Errorf("starting ingress listener: %w", err)
	}
	listener.SetSink(events)
	defer listener.Close()

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
	if err := analytics.Migrate(chClient, cfg.ClickHouse.Migrate.Verbose); err != nil {
		return fmt.Errorf("migrating clickhouse: %w", err)
	}

	analyticsCh, unsubscribe := bus.Subscribe(eventbus.Filter{})
	defer unsubscribe()
	sink := analytics.NewSink(chClient, log.Logger)

	scraper := rconpool.NewScraper(pool, lookup, lookup, statusPublisher, poolCfg)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		events.Run(gctx)
		return nil
	})
	group.Go(func() error {
		return listener.Run(gctx)
	})
	group.Go(func() error {
		sink.Run(gctx, analyticsCh)
		return nil
	})
	group.Go(func() error {
		scraper.Run(gctx)
		return nil
	})
	group.Go(func() error {
		bridgeMetrics(gctx, reg, events, listener, pool, sink, bus)
		return nil
	})

	log.Info().Str("addr", cfg.Ingest.BindAddr).Msg("hlstatsd ready")
	return group.Wait()
}

// bridgeMetrics samples every component's own cumulative counters on an
// interval and applies the delta since the last sample to reg, so each
// component stays free of a direct prometheus dependency while the
// registry still reflects real state (Registry.Gather has no other
// producer).
func bridgeMetrics(
	ctx context.Context,
	reg *metrics.Registry,
	events *pipeline.Pipeline,
	listener *ingest.Listener,
	pool *rconpool.Pool,
	sink *analytics.Sink,
	bus *eventbus.Bus,
) {
	const interval = 5 * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevProcessed, prevDuplicates, prevFailed int64
	var prevUnsupported int64
	var prevReconnects, prevConnectFailures int64
	var prevQueueDrops, prevSendFailures int64
	var prevAnalyticsDropped, prevBusDropped int64

	sample := func() {
		processed, duplicates, failed := events.Snapshot()
		reg.EventsProcessed.Add(float64(processed - prevProcessed))
		reg.EventsDuplicate.Add(float64(duplicates - prevDuplicates))
		reg.EventsFailed.Add(float64(failed - prevFailed))
		prevProcessed, prevDuplicates, prevFailed = processed, duplicates, failed

		_, unsupported, _ := listener.Snapshot()
		reg.ParserErrors.Add(float64(unsupported - prevUnsupported))
		prevUnsupported = unsupported

		reconnects, connectFailures := pool.Reconnects(), pool.Dropped()
		reg.RconReconnects.Add(float64(reconnects - prevReconnects))
		reg.RconConnectFailures.Add(float64(connectFailures - prevConnectFailures))
		prevReconnects, prevConnectFailures = reconnects, connectFailures

		queueDrops, sendFailures := pool.QueueDrops(), pool.SendFailures()
		reg.RconQueueDrops.Add(float64(queueDrops - prevQueueDrops))
		reg.NotifySendFailures.Add(float64(sendFailures - prevSendFailures))
		prevQueueDrops, prevSendFailures = queueDrops, sendFailures

		analyticsDropped := sink.Dropped()
		reg.AnalyticsDropped.Add(float64(analyticsDropped - prevAnalyticsDropped))
		prevAnalyticsDropped = analyticsDropped

		busDropped := bus.Dropped()
		reg.EventbusDropped.Add(float64(busDropped - prevBusDropped))
		prevBusDropped = busDropped
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
