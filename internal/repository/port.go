// Package repository declares the narrow persistence port the event
// pipeline depends on (§4.8) and its Postgres implementation. The
// pipeline never imports database/sql directly: it talks to this
// interface, so tests substitute the in-memory fake in memory.go.
//
// Grounded on the teacher's internal/core (squirrel-built queries over
// a db.Executor) and internal/permissions/repository.go (hand-written
// SQL for simpler lookups); both styles are used here depending on
// query shape, matching the mix the teacher itself shows.
package repository

import (
	"context"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// ServerRow is the persisted view of a game server.
type ServerRow struct {
	ID              model.ServerID
	Address         string
	Port            int
	GameCode        string
	Engine          model.EngineKind
	RconPasswordEnc string
	ActiveMap       string
	IgnoreBots      bool
	SkillMaxChange  int
	SuicidePenalty  int
	TeamkillPenalty int
	TeamkillBonus   int
	TokenHash       string // SHA-256 hex of the beacon token, empty until provisioned
	TokenPrefix     string // cleartext "hlxn_XXXXXXXX" shown in admin UI
}

// PlayerRow is the persisted view of a player.
type PlayerRow struct {
	ID       model.PlayerID
	GameCode string
	UniqueID string
	Name     string
	Skill    int
	Kills    int
	Deaths   int
}

// ActionRow is the persisted view of a scoreable action definition.
type ActionRow struct {
	GameCode     string
	Code         string
	Team         model.Team
	RewardPlayer int
	RewardTeam   int
}

// WeaponRow is the persisted view of a weapon's modifier and tallies.
type WeaponRow struct {
	GameCode string
	Code     string
	Name     string
	Modifier float64
	Kills    int
	Headshots int
}

// Repository is the pipeline's persistence port (§4.8). All methods
// that mutate state are expected to run inside a Transaction callback
// during the handler chain's persist step.
type Repository interface {
	FindOrCreateServer(ctx context.Context, address string, port int, game string) (ServerRow, error)
	GetServerByID(ctx context.Context, id model.ServerID) (ServerRow, bool, error)
	ListServers(ctx context.Context) ([]ServerRow, error)
	FindServerByAddress(ctx context.Context, address string, port int) (ServerRow, bool, error)
	FindServerByTokenHash(ctx context.Context, tokenHash string) (ServerRow, bool, error)
	SetServerToken(ctx context.Context, serverID model.ServerID, tokenHash, tokenPrefix string) error
	UpsertPlayer(ctx context.Context, game, uniqueID, name string) (PlayerRow, error)
	FindPlayersByID(ctx context.Context, ids []model.PlayerID) (map[model.PlayerID]PlayerRow, error)
	GetPlayerSkill(ctx context.Context, id model.PlayerID) (int, bool, error)
	GetPlayerRank(ctx context.Context, id model.PlayerID) (int, bool, error)
	ApplySkillDelta(ctx context.Context, id model.PlayerID, delta int) error

	FindAction(ctx context.Context, game, code string, team model.Team) (ActionRow, bool, error)
	FindWeapon(ctx context.Context, game, code string) (WeaponRow, bool, error)
	UpsertWeaponStats(ctx context.Context, game, code string, kills, headshots int) error

	RecordFrag(ctx context.Context, killerID, victimID model.PlayerID, serverID model.ServerID, mapName, weapon string, headshot bool) error
	RecordChat(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, message string) error
	RecordConnect(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, address string) error
	RecordDisconnect(ctx context.Context, playerID model.PlayerID, serverID model.ServerID) error
	RecordAction(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, actionCode string, reward int) error
	RecordTeamBonusBatch(ctx context.Context, playerIDs []model.PlayerID, serverID model.ServerID, actionCode string, rewardEach int) error
	RecordWorldAction(ctx context.Context, serverID model.ServerID, actionCode string) error
	RecordSuicide(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, weapon string) error
	RecordTeamkill(ctx context.Context, killerID, victimID model.PlayerID, serverID model.ServerID, weapon string) error

	IncrementServerRounds(ctx context.Context, serverID model.ServerID) error
	UpdateTeamWins(ctx context.Context, serverID model.ServerID, team model.Team) error
	ResetMapStats(ctx context.Context, serverID model.ServerID, newMap string, playerCount int) error

	CreatePlayerHistory(ctx context.Context, playerID model.PlayerID, day string, kills, deaths, skill int) error

	Transaction(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
