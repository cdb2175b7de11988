package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

func TestUpsertPlayerIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:111", "Alice")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := m.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:111", "Alice Renamed")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same player id across upserts, got %d and %d", first.ID, second.ID)
	}
	if second.Name != "Alice Renamed" {
		t.Fatalf("expected name to update in place, got %q", second.Name)
	}
	if len(m.players) != 1 {
		t.Fatalf("expected exactly one stored player row, got %d", len(m.players))
	}
}

func TestFindOrCreateServerIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.FindOrCreateServer(ctx, "10.0.0.1", 27015, "cstrike")
	if err != nil {
		t.Fatalf("find_or_create: %v", err)
	}
	second, err := m.FindOrCreateServer(ctx, "10.0.0.1", 27015, "cstrike")
	if err != nil {
		t.Fatalf("find_or_create: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same server id, got %d and %d", first.ID, second.ID)
	}
	if len(m.servers) != 1 {
		t.Fatalf("expected exactly one stored server row, got %d", len(m.servers))
	}
}

func TestFindOrCreateServerConcurrentRaceConverges(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const n = 16
	ids := make([]model.ServerID, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			row, err := m.FindOrCreateServer(ctx, "10.0.0.2", 27016, "cstrike")
			if err != nil {
				t.Errorf("find_or_create: %v", err)
				return
			}
			ids[i] = row.ID
		}(i)
	}
	wg.Wait()

	want := ids[0]
	for _, id := range ids {
		if id != want {
			t.Fatalf("expected all concurrent callers to converge on one server id, got %v", ids)
		}
	}
}

func TestApplySkillDeltaClampsAtZero(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	row, err := m.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:222", "Bob")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := m.ApplySkillDelta(ctx, row.ID, -1000); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	skill, ok, err := m.GetPlayerSkill(ctx, row.ID)
	if err != nil || !ok {
		t.Fatalf("get skill: ok=%v err=%v", ok, err)
	}
	if skill != 0 {
		t.Fatalf("expected skill clamped to 0, got %d", skill)
	}
}

func TestFindActionPrefersTeamSpecificRow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.SeedAction(ActionRow{GameCode: "cstrike", Code: "Bomb_Planted", Team: "", RewardPlayer: 5})
	m.SeedAction(ActionRow{GameCode: "cstrike", Code: "Bomb_Planted", Team: model.TeamTerrorist, RewardPlayer: 10})

	row, ok, err := m.FindAction(ctx, "cstrike", "Bomb_Planted", model.TeamTerrorist)
	if err != nil || !ok {
		t.Fatalf("find_action: ok=%v err=%v", ok, err)
	}
	if row.RewardPlayer != 10 {
		t.Fatalf("expected team-specific reward 10, got %d", row.RewardPlayer)
	}

	row, ok, err = m.FindAction(ctx, "cstrike", "Bomb_Planted", model.TeamCT)
	if err != nil || !ok {
		t.Fatalf("find_action fallback: ok=%v err=%v", ok, err)
	}
	if row.RewardPlayer != 5 {
		t.Fatalf("expected blanket reward 5 for a team with no specific row, got %d", row.RewardPlayer)
	}
}

func TestCreatePlayerHistoryAggregatesSameDay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.CreatePlayerHistory(ctx, 1, "2026-07-30", 3, 1, 1050); err != nil {
		t.Fatalf("create history: %v", err)
	}
	if err := m.CreatePlayerHistory(ctx, 1, "2026-07-30", 2, 0, 1080); err != nil {
		t.Fatalf("create history: %v", err)
	}

	row, ok := m.History(1, "2026-07-30")
	if !ok {
		t.Fatalf("expected a history row for the day")
	}
	if row.Kills != 5 || row.Deaths != 1 {
		t.Fatalf("expected aggregated kills=5 deaths=1, got kills=%d deaths=%d", row.Kills, row.Deaths)
	}
	if row.Skill != 1080 {
		t.Fatalf("expected latest skill snapshot 1080, got %d", row.Skill)
	}
}

func TestTransactionRunsAgainstSameRepository(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Transaction(ctx, func(ctx context.Context, repo Repository) error {
		_, err := repo.UpsertPlayer(ctx, "cstrike", "STEAM_0:1:333", "Carol")
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if len(m.players) != 1 {
		t.Fatalf("expected the transaction's write to land, got %d players", len(m.players))
	}
}
