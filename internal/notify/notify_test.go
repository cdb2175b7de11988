package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

type fakeExecutor struct {
	commands []string
}

func (f *fakeExecutor) Enqueue(_ model.ServerID, command string) {
	f.commands = append(f.commands, command)
}

func TestNotifyKillRendersPointsAndRanks(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	server, err := repo.FindOrCreateServer(ctx, "10.0.0.1", 27015, "cstrike")
	if err != nil {
		t.Fatalf("find_or_create_server: %v", err)
	}
	killer, _ := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:1", "Killer")
	victim, _ := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:2", "Victim")

	exec := &fakeExecutor{}
	d := New(repo, exec, Templates{}, zerolog.Nop())

	evt := model.NewEvent(server.ID, time.Now(), model.Meta{
		Actor:  model.Identity{Name: "Killer", PlayerID: killer.ID},
		Target: &model.Identity{Name: "Victim", PlayerID: victim.ID},
	}, model.PlayerKillData{Weapon: "ak47", Headshot: true})

	if err := d.Notify(ctx, evt, map[model.PlayerID]int{killer.ID: 20, victim.ID: -16}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(exec.commands) != 1 {
		t.Fatalf("expected one say command, got %d", len(exec.commands))
	}
	got := exec.commands[0]
	if !strings.Contains(got, "Killer") || !strings.Contains(got, "Victim") || !strings.Contains(got, "+20") {
		t.Fatalf("unexpected rendered message: %q", got)
	}
	if !strings.Contains(got, "headshot") {
		t.Fatalf("expected headshot kill to render the kill_headshot template, got %q", got)
	}
}

func TestNotifyKillWithoutHeadshotUsesPlainTemplate(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	server, _ := repo.FindOrCreateServer(ctx, "10.0.0.6", 27015, "cstrike")
	killer, _ := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:5", "Killer")
	victim, _ := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:6", "Victim")

	exec := &fakeExecutor{}
	d := New(repo, exec, Templates{}, zerolog.Nop())

	evt := model.NewEvent(server.ID, time.Now(), model.Meta{
		Actor:  model.Identity{Name: "Killer", PlayerID: killer.ID},
		Target: &model.Identity{Name: "Victim", PlayerID: victim.ID},
	}, model.PlayerKillData{Weapon: "ak47", Headshot: false})

	if err := d.Notify(ctx, evt, map[model.PlayerID]int{killer.ID: 20, victim.ID: -16}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if strings.Contains(exec.commands[0], "headshot") {
		t.Fatalf("expected non-headshot kill to skip the kill_headshot template, got %q", exec.commands[0])
	}
}

func TestNotifySuicideNegativePoints(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	server, _ := repo.FindOrCreateServer(ctx, "10.0.0.2", 27015, "cstrike")
	player, _ := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:3", "Loner")

	exec := &fakeExecutor{}
	d := New(repo, exec, Templates{}, zerolog.Nop())

	evt := model.NewEvent(server.ID, time.Now(), model.Meta{
		Actor: model.Identity{Name: "Loner", PlayerID: player.ID},
	}, model.PlayerSuicideData{Weapon: "world"})

	if err := d.Notify(ctx, evt, map[model.PlayerID]int{player.ID: -5}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(exec.commands[0], "-5") {
		t.Fatalf("expected explicit negative sign in %q", exec.commands[0])
	}
}

func TestNotifyConnectQueuesCommand(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	server, _ := repo.FindOrCreateServer(ctx, "10.0.0.3", 27015, "cstrike")
	player, _ := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:4", "P")

	exec := &fakeExecutor{}
	d := New(repo, exec, Templates{}, zerolog.Nop())

	evt := model.NewEvent(server.ID, time.Now(), model.Meta{
		Actor: model.Identity{Name: "P", PlayerID: player.ID},
	}, model.PlayerConnectData{Address: "1.2.3.4"})

	if err := d.Notify(ctx, evt, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(exec.commands) != 1 {
		t.Fatalf("expected the connect notification to be queued, got %v", exec.commands)
	}
}

func TestNoEventTypeTemplateIsSkipped(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	server, _ := repo.FindOrCreateServer(ctx, "10.0.0.4", 27015, "cstrike")

	exec := &fakeExecutor{}
	d := New(repo, exec, Templates{}, zerolog.Nop())

	evt := model.NewEvent(server.ID, time.Now(), model.Meta{}, model.RoundEndData{WinningTeam: model.TeamCT, Tickets: 3})
	if err := d.Notify(ctx, evt, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(exec.commands) != 0 {
		t.Fatalf("expected no command for an untemplated event type, got %v", exec.commands)
	}
}
