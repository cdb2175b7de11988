package pipeline

import "sync/atomic"

// Counter is a minimal concurrency-safe counter; the daemon's metrics
// bridge (cmd/hlstatsd) samples these into internal/metrics'
// Prometheus counters, keeping this package free of a metrics-library
// import.
type Counter struct {
	value atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }

func (c *Counter) Load() int64 { return c.value.Load() }
