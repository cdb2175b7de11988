package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistryCountersStartAtZero(t *testing.T) {
	r := New()
	if got := testutil.ToFloat64(r.EventsIngested); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestRegistryCounterIncrements(t *testing.T) {
	r := New()
	r.EventsIngested.Inc()
	r.EventsIngested.Inc()
	r.RconQueueDrops.Inc()

	if got := testutil.ToFloat64(r.EventsIngested); got != 2 {
		t.Fatalf("want EventsIngested=2, got %v", got)
	}
	if got := testutil.ToFloat64(r.RconQueueDrops); got != 1 {
		t.Fatalf("want RconQueueDrops=1, got %v", got)
	}
}

func TestRegistryInstancesAreIsolated(t *testing.T) {
	a := New()
	b := New()

	a.EventsFailed.Inc()

	if got := testutil.ToFloat64(a.EventsFailed); got != 1 {
		t.Fatalf("want a.EventsFailed=1, got %v", got)
	}
	if got := testutil.ToFloat64(b.EventsFailed); got != 0 {
		t.Fatalf("want b.EventsFailed=0 (isolated registry), got %v", got)
	}
}

func TestGatherReturnsRegisteredFamilies(t *testing.T) {
	r := New()
	r.ParserErrors.Inc()

	families, err := r.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "hlstatsd_parser_errors_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want hlstatsd_parser_errors_total in gathered families")
	}
}
