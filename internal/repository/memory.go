package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// Memory is an in-process Repository used by pipeline and handler-chain
// tests so they never need a live Postgres instance.
type Memory struct {
	mu sync.Mutex

	nextServerID model.ServerID
	nextPlayerID model.PlayerID

	servers map[model.ServerID]ServerRow
	// serverKey maps (address, port) -> ServerID for FindOrCreateServer lookups.
	serverKey map[string]model.ServerID
	// tokenKey maps a beacon token hash -> ServerID.
	tokenKey map[string]model.ServerID

	players map[model.PlayerID]PlayerRow
	// playerKey maps (game, uniqueID) -> PlayerID.
	playerKey map[string]model.PlayerID

	actions map[string]ActionRow // keyed by game|code|team
	weapons map[string]WeaponRow // keyed by game|code

	history map[string]PlayerHistoryRow // keyed by playerID|day

	Frags           []FragRecord
	Chats           []ChatRecord
	Connects        []ConnectRecord
	Disconnects     []DisconnectRecord
	Actions         []ActionRecord
	WorldActions    []WorldActionRecord
	Suicides        []SuicideRecord
	Teamkills       []TeamkillRecord
	RoundIncrements []model.ServerID
	TeamWins        []TeamWinRecord
	MapResets       []MapResetRecord
}

// TeamWinRecord is one UpdateTeamWins call observed by Memory.
type TeamWinRecord struct {
	ServerID model.ServerID
	Team     model.Team
}

// MapResetRecord is one ResetMapStats call observed by Memory.
type MapResetRecord struct {
	ServerID    model.ServerID
	NewMap      string
	PlayerCount int
}

// PlayerHistoryRow is the in-memory mirror of a per-day player_history row.
type PlayerHistoryRow struct {
	PlayerID model.PlayerID
	Day      string
	Kills    int
	Deaths   int
	Skill    int
}

type FragRecord struct {
	KillerID, VictimID model.PlayerID
	ServerID           model.ServerID
	Map, Weapon        string
	Headshot           bool
}

type ChatRecord struct {
	PlayerID model.PlayerID
	ServerID model.ServerID
	Message  string
}

type ConnectRecord struct {
	PlayerID model.PlayerID
	ServerID model.ServerID
	Address  string
}

type DisconnectRecord struct {
	PlayerID model.PlayerID
	ServerID model.ServerID
}

type ActionRecord struct {
	PlayerID   model.PlayerID
	ServerID   model.ServerID
	ActionCode string
	Reward     int
}

type WorldActionRecord struct {
	ServerID   model.ServerID
	ActionCode string
}

type SuicideRecord struct {
	PlayerID model.PlayerID
	ServerID model.ServerID
	Weapon   string
}

type TeamkillRecord struct {
	KillerID, VictimID model.PlayerID
	ServerID           model.ServerID
	Weapon             string
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{
		servers:   make(map[model.ServerID]ServerRow),
		serverKey: make(map[string]model.ServerID),
		tokenKey:  make(map[string]model.ServerID),
		players:   make(map[model.PlayerID]PlayerRow),
		playerKey: make(map[string]model.PlayerID),
		actions:   make(map[string]ActionRow),
		weapons:   make(map[string]WeaponRow),
		history:   make(map[string]PlayerHistoryRow),
	}
}

// SeedAction and SeedWeapon let tests populate lookup tables directly.
func (m *Memory) SeedAction(row ActionRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[actionKey(row.GameCode, row.Code, row.Team)] = row
}

func (m *Memory) SeedWeapon(row WeaponRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weapons[weaponKey(row.GameCode, row.Code)] = row
}

// SeedServer overwrites the stored row for an existing server id, for
// tests that need to set fields FindOrCreateServer never populates
// (e.g. RconPasswordEnc).
func (m *Memory) SeedServer(row ServerRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[row.ID] = row
	m.serverKey[serverKey(row.Address, row.Port)] = row.ID
}

func actionKey(game, code string, team model.Team) string {
	return fmt.Sprintf("%s|%s|%s", game, code, team)
}

func weaponKey(game, code string) string {
	return fmt.Sprintf("%s|%s", game, code)
}

func serverKey(address string, port int) string {
	return fmt.Sprintf("%s:%d", address, port)
}

func (m *Memory) FindOrCreateServer(_ context.Context, address string, port int, game string) (ServerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := serverKey(address, port)
	if id, ok := m.serverKey[key]; ok {
		return m.servers[id], nil
	}

	m.nextServerID++
	row := ServerRow{
		ID:             m.nextServerID,
		Address:        address,
		Port:           port,
		GameCode:       game,
		Engine:         model.EngineGoldSrc,
		SkillMaxChange: 50,
	}
	m.servers[row.ID] = row
	m.serverKey[key] = row.ID
	return row, nil
}

func (m *Memory) GetServerByID(_ context.Context, id model.ServerID) (ServerRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.servers[id]
	return row, ok, nil
}

func (m *Memory) ListServers(_ context.Context) ([]ServerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]ServerRow, 0, len(m.servers))
	for _, row := range m.servers {
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *Memory) FindServerByAddress(_ context.Context, address string, port int) (ServerRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.serverKey[serverKey(address, port)]
	if !ok {
		return ServerRow{}, false, nil
	}
	return m.servers[id], true, nil
}

func (m *Memory) FindServerByTokenHash(_ context.Context, tokenHash string) (ServerRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokenKey[tokenHash]
	if !ok {
		return ServerRow{}, false, nil
	}
	return m.servers[id], true, nil
}

func (m *Memory) SetServerToken(_ context.Context, serverID model.ServerID, tokenHash, tokenPrefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.servers[serverID]
	if !ok {
		return fmt.Errorf("repository: server %d not found", serverID)
	}
	row.TokenHash, row.TokenPrefix = tokenHash, tokenPrefix
	m.servers[serverID] = row
	m.tokenKey[tokenHash] = serverID
	return nil
}

func (m *Memory) UpsertPlayer(_ context.Context, game, uniqueID, name string) (PlayerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := game + "|" + uniqueID
	if id, ok := m.playerKey[key]; ok {
		row := m.players[id]
		row.Name = name
		m.players[id] = row
		return row, nil
	}

	m.nextPlayerID++
	row := PlayerRow{ID: m.nextPlayerID, GameCode: game, UniqueID: uniqueID, Name: name}
	m.players[row.ID] = row
	m.playerKey[key] = row.ID
	return row, nil
}

func (m *Memory) FindPlayersByID(_ context.Context, ids []model.PlayerID) (map[model.PlayerID]PlayerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[model.PlayerID]PlayerRow, len(ids))
	for _, id := range ids {
		if row, ok := m.players[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func (m *Memory) GetPlayerSkill(_ context.Context, id model.PlayerID) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.players[id]
	return row.Skill, ok, nil
}

func (m *Memory) GetPlayerRank(_ context.Context, id model.PlayerID) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.players[id]
	if !ok {
		return 0, false, nil
	}
	rank := 1
	for _, row := range m.players {
		if row.Skill > target.Skill {
			rank++
		}
	}
	return rank, true, nil
}

func (m *Memory) ApplySkillDelta(_ context.Context, id model.PlayerID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.players[id]
	if !ok {
		return fmt.Errorf("repository: player %d not found", id)
	}
	result := row.Skill + delta
	if result < 0 {
		result = 0
	}
	row.Skill = result
	m.players[id] = row
	return nil
}

func (m *Memory) FindAction(_ context.Context, game, code string, team model.Team) (ActionRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.actions[actionKey(game, code, team)]; ok && team != "" {
		return row, true, nil
	}
	row, ok := m.actions[actionKey(game, code, "")]
	return row, ok, nil
}

func (m *Memory) FindWeapon(_ context.Context, game, code string) (WeaponRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.weapons[weaponKey(game, code)]
	return row, ok, nil
}

func (m *Memory) UpsertWeaponStats(_ context.Context, game, code string, kills, headshots int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := weaponKey(game, code)
	row := m.weapons[key]
	row.GameCode, row.Code = game, code
	row.Kills += kills
	row.Headshots += headshots
	m.weapons[key] = row
	return nil
}

func (m *Memory) RecordFrag(_ context.Context, killerID, victimID model.PlayerID, serverID model.ServerID, mapName, weapon string, headshot bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frags = append(m.Frags, FragRecord{killerID, victimID, serverID, mapName, weapon, headshot})
	return nil
}

func (m *Memory) RecordChat(_ context.Context, playerID model.PlayerID, serverID model.ServerID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Chats = append(m.Chats, ChatRecord{playerID, serverID, message})
	return nil
}

func (m *Memory) RecordConnect(_ context.Context, playerID model.PlayerID, serverID model.ServerID, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connects = append(m.Connects, ConnectRecord{playerID, serverID, address})
	return nil
}

func (m *Memory) RecordDisconnect(_ context.Context, playerID model.PlayerID, serverID model.ServerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disconnects = append(m.Disconnects, DisconnectRecord{playerID, serverID})
	return nil
}

func (m *Memory) RecordAction(_ context.Context, playerID model.PlayerID, serverID model.ServerID, actionCode string, reward int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, ActionRecord{playerID, serverID, actionCode, reward})
	return nil
}

func (m *Memory) RecordTeamBonusBatch(ctx context.Context, playerIDs []model.PlayerID, serverID model.ServerID, actionCode string, rewardEach int) error {
	for _, id := range playerIDs {
		if err := m.RecordAction(ctx, id, serverID, actionCode, rewardEach); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) RecordWorldAction(_ context.Context, serverID model.ServerID, actionCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorldActions = append(m.WorldActions, WorldActionRecord{serverID, actionCode})
	return nil
}

func (m *Memory) RecordSuicide(_ context.Context, playerID model.PlayerID, serverID model.ServerID, weapon string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Suicides = append(m.Suicides, SuicideRecord{playerID, serverID, weapon})
	return nil
}

func (m *Memory) RecordTeamkill(_ context.Context, killerID, victimID model.PlayerID, serverID model.ServerID, weapon string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Teamkills = append(m.Teamkills, TeamkillRecord{killerID, victimID, serverID, weapon})
	return nil
}

func (m *Memory) IncrementServerRounds(_ context.Context, serverID model.ServerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RoundIncrements = append(m.RoundIncrements, serverID)
	return nil
}

func (m *Memory) UpdateTeamWins(_ context.Context, serverID model.ServerID, team model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TeamWins = append(m.TeamWins, TeamWinRecord{ServerID: serverID, Team: team})
	return nil
}

func (m *Memory) ResetMapStats(_ context.Context, serverID model.ServerID, newMap string, playerCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.servers[serverID]
	if !ok {
		return fmt.Errorf("repository: server %d not found", serverID)
	}
	row.ActiveMap = newMap
	m.servers[serverID] = row
	m.MapResets = append(m.MapResets, MapResetRecord{ServerID: serverID, NewMap: newMap, PlayerCount: playerCount})
	return nil
}

func (m *Memory) CreatePlayerHistory(_ context.Context, playerID model.PlayerID, day string, kills, deaths, skill int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%d|%s", playerID, day)
	row := m.history[key]
	row.PlayerID, row.Day = playerID, day
	row.Kills += kills
	row.Deaths += deaths
	row.Skill = skill
	m.history[key] = row
	return nil
}

// History returns the aggregated history row for a player/day, for test assertions.
func (m *Memory) History(playerID model.PlayerID, day string) (PlayerHistoryRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.history[fmt.Sprintf("%d|%s", playerID, day)]
	return row, ok
}

// Transaction runs fn against the same Memory instance: in-process tests
// have no real isolation to provide, but callers get the same interface
// shape as Postgres so pipeline code never branches on backend.
func (m *Memory) Transaction(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return fn(ctx, m)
}
