package rconpool

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

type fakeMapLookup struct{ active string }

func (f fakeMapLookup) ActiveMap(_ context.Context, _ model.ServerID) (string, error) {
	return f.active, nil
}

type recordingSink struct {
	statuses   []model.ServerStatusData
	mapChanges []model.MapChangeData
}

func (s *recordingSink) PublishStatus(_ context.Context, _ model.ServerID, status model.ServerStatusData) {
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) PublishMapChange(_ context.Context, _ model.ServerID, change model.MapChangeData) {
	s.mapChanges = append(s.mapChanges, change)
}

func TestScraperPublishesMapChangeOnDiff(t *testing.T) {
	pool := New(Config{}, nil, nil, zerolog.Nop())
	sink := &recordingSink{}
	scraper := NewScraper(pool, nil, fakeMapLookup{active: "de_dust2"}, sink, Config{})

	scraper.checkMapChange(context.Background(), model.ServerID(1), model.ServerStatusData{Map: "de_inferno", ActivePlayers: 7})

	if len(sink.mapChanges) != 1 {
		t.Fatalf("expected one map change event, got %d", len(sink.mapChanges))
	}
	got := sink.mapChanges[0]
	if got.PreviousMap != "de_dust2" || got.NewMap != "de_inferno" || got.PlayerCount != 7 {
		t.Fatalf("unexpected map change event: %+v", got)
	}
}

func TestScraperSkipsMapChangeWhenUnchanged(t *testing.T) {
	pool := New(Config{}, nil, nil, zerolog.Nop())
	sink := &recordingSink{}
	scraper := NewScraper(pool, nil, fakeMapLookup{active: "de_dust2"}, sink, Config{})

	scraper.checkMapChange(context.Background(), model.ServerID(1), model.ServerStatusData{Map: "de_dust2"})

	if len(sink.mapChanges) != 0 {
		t.Fatalf("expected no map change event for an unchanged map, got %d", len(sink.mapChanges))
	}
}

func TestScraperSkipsMapChangeWithNoStoredMap(t *testing.T) {
	pool := New(Config{}, nil, nil, zerolog.Nop())
	sink := &recordingSink{}
	scraper := NewScraper(pool, nil, fakeMapLookup{active: ""}, sink, Config{})

	scraper.checkMapChange(context.Background(), model.ServerID(1), model.ServerStatusData{Map: "de_inferno"})

	if len(sink.mapChanges) != 0 {
		t.Fatalf("expected no map change event when the server row has never recorded a map, got %d", len(sink.mapChanges))
	}
}

func TestParseStatus(t *testing.T) {
	body := "hostname: My Server\nversion: 1.0.0.0\nmap: de_dust2\nfps: 99.5\nplayers : 12 (32 max)\n"
	got := ParseStatus(body, 3)

	if got.Hostname != "My Server" {
		t.Fatalf("hostname: got %q", got.Hostname)
	}
	if got.Version != "1.0.0.0" {
		t.Fatalf("version: got %q", got.Version)
	}
	if got.Map != "de_dust2" {
		t.Fatalf("map: got %q", got.Map)
	}
	if got.FPS != 99.5 {
		t.Fatalf("fps: got %v", got.FPS)
	}
	if got.TotalPlayers != 12 || got.MaxPlayers != 32 {
		t.Fatalf("players: got total=%d max=%d", got.TotalPlayers, got.MaxPlayers)
	}
	if got.BotCount != 3 {
		t.Fatalf("bot count: got %d", got.BotCount)
	}
}

func TestIgnoreBotsTruthy(t *testing.T) {
	truthy := []string{"1", "true", "YES", "On"}
	for _, v := range truthy {
		if !IgnoreBotsTruthy(v) {
			t.Fatalf("expected %q to be truthy", v)
		}
	}
	falsy := []string{"0", "false", "no", "off", "", "garbage"}
	for _, v := range falsy {
		if IgnoreBotsTruthy(v) {
			t.Fatalf("expected %q to be falsy", v)
		}
	}
}

func TestActiveWithBots(t *testing.T) {
	status := model.ServerStatusData{TotalPlayers: 10, BotCount: 2}
	if got := ActiveWithBots(status, true); got != 8 {
		t.Fatalf("want 8 got %d", got)
	}
	if got := ActiveWithBots(status, false); got != 10 {
		t.Fatalf("want 10 got %d", got)
	}
}
