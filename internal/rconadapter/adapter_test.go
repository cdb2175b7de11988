package rconadapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/cache"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/cryptoutil"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore { return &memStore{values: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestServerDialInfoUnsealsPassword(t *testing.T) {
	repo := repository.NewMemory()
	row, err := repo.FindOrCreateServer(context.Background(), "10.0.0.1", 27015, "cstrike")
	if err != nil {
		t.Fatalf("FindOrCreateServer: %v", err)
	}

	key := make([]byte, 32)
	sealer, err := cryptoutil.NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sealed, err := sealer.Seal("rconpass")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	row.RconPasswordEnc = sealed
	repo.SeedServer(row)

	activity := cache.NewActivityTracker(newMemStore())
	lookup := New(repo, sealer, activity)

	info, err := lookup.ServerDialInfo(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("ServerDialInfo: %v", err)
	}
	if info.Address != "10.0.0.1" || info.Port != 27015 {
		t.Fatalf("unexpected dial info: %+v", info)
	}
	if !info.HasCredentials || info.Password != "rconpass" {
		t.Fatalf("want unsealed password, got %+v", info)
	}
}

func TestEligibleServersRequiresCredentialsAndActivity(t *testing.T) {
	repo := repository.NewMemory()
	row, _ := repo.FindOrCreateServer(context.Background(), "10.0.0.2", 27015, "cstrike")

	activity := cache.NewActivityTracker(newMemStore())
	lookup := New(repo, nil, activity)

	ids, err := lookup.EligibleServers(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("EligibleServers: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("want no eligible servers (no credentials), got %v", ids)
	}

	row.RconPasswordEnc = "sealed"
	repo.SeedServer(row)
	if err := activity.Touch(context.Background(), row.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	ids, err = lookup.EligibleServers(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("EligibleServers: %v", err)
	}
	if len(ids) != 1 || ids[0] != row.ID {
		t.Fatalf("want [%d], got %v", row.ID, ids)
	}
}

func TestStatusPublisherSubmitsEvent(t *testing.T) {
	var got model.Event
	sink := submitterFunc(func(_ context.Context, evt model.Event) error {
		got = evt
		return nil
	})

	pub := NewStatusPublisher(sink, zerolog.Nop())
	pub.PublishStatus(context.Background(), model.ServerID(1), model.ServerStatusData{Map: "de_dust2"})

	if got.ServerID != 1 {
		t.Fatalf("want server id 1, got %d", got.ServerID)
	}
	data, ok := got.Data.(model.ServerStatusData)
	if !ok || data.Map != "de_dust2" {
		t.Fatalf("want ServerStatusData with map de_dust2, got %+v", got.Data)
	}
}

func TestStatusPublisherPublishesMapChange(t *testing.T) {
	var got model.Event
	sink := submitterFunc(func(_ context.Context, evt model.Event) error {
		got = evt
		return nil
	})

	pub := NewStatusPublisher(sink, zerolog.Nop())
	pub.PublishMapChange(context.Background(), model.ServerID(1), model.MapChangeData{PreviousMap: "de_dust2", NewMap: "de_inferno", PlayerCount: 4})

	data, ok := got.Data.(model.MapChangeData)
	if !ok || data.PreviousMap != "de_dust2" || data.NewMap != "de_inferno" || data.PlayerCount != 4 {
		t.Fatalf("unexpected map change event: %+v", got.Data)
	}
}

func TestLookupActiveMapReturnsStoredMap(t *testing.T) {
	repo := repository.NewMemory()
	row, _ := repo.FindOrCreateServer(context.Background(), "10.0.0.4", 27015, "cstrike")
	row.ActiveMap = "de_dust2"
	repo.SeedServer(row)

	lookup := New(repo, nil, cache.NewActivityTracker(newMemStore()))

	got, err := lookup.ActiveMap(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("ActiveMap: %v", err)
	}
	if got != "de_dust2" {
		t.Fatalf("want de_dust2, got %q", got)
	}
}

func TestLookupActiveMapUnknownServer(t *testing.T) {
	repo := repository.NewMemory()
	lookup := New(repo, nil, cache.NewActivityTracker(newMemStore()))

	if _, err := lookup.ActiveMap(context.Background(), model.ServerID(999)); err == nil {
		t.Fatalf("expected an error for an unknown server")
	}
}

type submitterFunc func(ctx context.Context, evt model.Event) error

func (f submitterFunc) Submit(ctx context.Context, evt model.Event) error { return f(ctx, evt) }
