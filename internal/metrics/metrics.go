// Package metrics is the daemon's prometheus registry: the pipeline,
// RCON pool, parser, notifier, and analytics sink update counters and
// histograms here. HTTP exposition is out of scope for this daemon
// (§1), so the registry is never mounted on a handler, but the
// counters are real and observable through Registry.Gather (the same
// surface a /metrics handler would use, if one existed).
//
// Grounded on the MOHCentral-opm-stats-api example's
// internal/worker/pool.go, which instruments an ingestion worker pool
// the same shape as this daemon's pipeline (promauto counters for
// ingested/processed/failed/load-shed events, a gauge for queue depth,
// a histogram for batch-insert duration). Generalized from
// package-level vars bound to the global registry to an owned
// *prometheus.Registry via promauto.With, so every daemon instance
// (and every test) gets its own isolated set of series.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every counter/histogram this daemon updates plus
// the prometheus.Registry they're registered against.
type Registry struct {
	reg *prometheus.Registry

	EventsIngested    prometheus.Counter
	EventsProcessed   prometheus.Counter
	EventsFailed      prometheus.Counter
	EventsDuplicate   prometheus.Counter
	PipelineQueueWait prometheus.Histogram

	RconQueueDrops      prometheus.Counter
	RconReconnects      prometheus.Counter
	RconConnectFailures prometheus.Counter
	RconCommandDuration prometheus.Histogram

	ParserErrors prometheus.Counter

	NotifySendFailures prometheus.Counter

	AnalyticsDropped prometheus.Counter
	EventbusDropped  prometheus.Counter
}

// New builds a Registry with its own prometheus.Registry, so multiple
// instances (e.g. one per test) never collide on series names.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_events_ingested_total",
			Help: "Total number of log lines successfully parsed into events.",
		}),
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_events_processed_total",
			Help: "Total number of events that completed the handler chain.",
		}),
		EventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_events_failed_total",
			Help: "Total number of events whose handler chain returned an error.",
		}),
		EventsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_events_duplicate_total",
			Help: "Total number of events dropped by the pipeline's dedup set.",
		}),
		PipelineQueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlstatsd_pipeline_queue_wait_seconds",
			Help:    "Time an event spent queued before a worker picked it up.",
			Buckets: prometheus.DefBuckets,
		}),

		RconQueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_rcon_queue_drops_total",
			Help: "Total number of RCON commands dropped because a server's send queue was full.",
		}),
		RconReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_rcon_reconnects_total",
			Help: "Total number of RCON connections re-established after a failure.",
		}),
		RconConnectFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_rcon_connect_failures_total",
			Help: "Total number of RCON connect attempts that exhausted every retry.",
		}),
		RconCommandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlstatsd_rcon_command_duration_seconds",
			Help:    "Duration of a single RCON command round trip.",
			Buckets: prometheus.DefBuckets,
		}),

		ParserErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_parser_errors_total",
			Help: "Total number of log lines that failed to parse.",
		}),

		NotifySendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_notify_send_failures_total",
			Help: "Total number of RCON notification sends that failed.",
		}),

		AnalyticsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_analytics_dropped_total",
			Help: "Total number of events dropped by the ClickHouse write-behind sink.",
		}),
		EventbusDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlstatsd_eventbus_dropped_total",
			Help: "Total number of events dropped by the event bus for a full queue or subscriber channel.",
		}),
	}
}

// Gather returns the current state of every registered metric family,
// the same call an HTTP exposition handler would make.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
