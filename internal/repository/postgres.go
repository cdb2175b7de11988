package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/samber/oops"

	dbpkg "github.com/jstnmthw/hlstatsnext-sub008/db"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Postgres implements Repository over *sql.DB using squirrel-built
// queries, grounded on the teacher's internal/core query style.
type Postgres struct {
	db   *sql.DB
	exec dbpkg.Executor // db when not in a transaction, tx when Transaction is active
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, exec: db}
}

func (p *Postgres) FindOrCreateServer(ctx context.Context, address string, port int, game string) (ServerRow, error) {
	row, err := p.selectServer(ctx, address, port)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ServerRow{}, oops.Wrapf(err, "selecting server %s:%d", address, port)
	}

	insert, args, err := psql.Insert("servers").
		Columns("address", "port", "game_code").
		Values(address, port, game).
		Suffix("ON CONFLICT (address, port) DO NOTHING").
		ToSql()
	if err != nil {
		return ServerRow{}, oops.Wrap(err)
	}
	if _, err := p.exec.ExecContext(ctx, insert, args...); err != nil {
		return ServerRow{}, oops.Wrapf(err, "inserting server %s:%d", address, port)
	}

	// The unique-constraint race (§4.8 property 8): whether we won or
	// lost the insert, the row now exists; re-read it.
	row, err = p.selectServer(ctx, address, port)
	if err != nil {
		return ServerRow{}, oops.Wrapf(err, "re-reading server %s:%d after insert", address, port)
	}
	return row, nil
}

func (p *Postgres) GetServerByID(ctx context.Context, id model.ServerID) (ServerRow, bool, error) {
	q, args, err := psql.Select("id", "address", "port", "game_code", "engine", "rcon_password_enc",
		"active_map", "ignore_bots", "skill_max_change", "suicide_penalty", "teamkill_penalty", "teamkill_bonus").
		From("servers").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ServerRow{}, false, oops.Wrap(err)
	}
	var row ServerRow
	err = p.exec.QueryRowContext(ctx, q, args...).Scan(
		&row.ID, &row.Address, &row.Port, &row.GameCode, &row.Engine, &row.RconPasswordEnc,
		&row.ActiveMap, &row.IgnoreBots, &row.SkillMaxChange, &row.SuicidePenalty, &row.TeamkillPenalty, &row.TeamkillBonus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ServerRow{}, false, nil
	}
	if err != nil {
		return ServerRow{}, false, oops.Wrap(err)
	}
	return row, true, nil
}

func (p *Postgres) ListServers(ctx context.Context) ([]ServerRow, error) {
	q, args, err := psql.Select("id", "address", "port", "game_code", "engine", "rcon_password_enc",
		"active_map", "ignore_bots", "skill_max_change", "suicide_penalty", "teamkill_penalty", "teamkill_bonus").
		From("servers").
		ToSql()
	if err != nil {
		return nil, oops.Wrap(err)
	}
	rows, err := p.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	defer rows.Close()

	var out []ServerRow
	for rows.Next() {
		var row ServerRow
		if err := rows.Scan(
			&row.ID, &row.Address, &row.Port, &row.GameCode, &row.Engine, &row.RconPasswordEnc,
			&row.ActiveMap, &row.IgnoreBots, &row.SkillMaxChange, &row.SuicidePenalty, &row.TeamkillPenalty, &row.TeamkillBonus,
		); err != nil {
			return nil, oops.Wrap(err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) selectServer(ctx context.Context, address string, port int) (ServerRow, error) {
	q, args, err := psql.Select("id", "address", "port", "game_code", "engine", "rcon_password_enc",
		"active_map", "ignore_bots", "skill_max_change", "suicide_penalty", "teamkill_penalty", "teamkill_bonus").
		From("servers").
		Where(squirrel.Eq{"address": address, "port": port}).
		ToSql()
	if err != nil {
		return ServerRow{}, err
	}
	var row ServerRow
	err = p.exec.QueryRowContext(ctx, q, args...).Scan(
		&row.ID, &row.Address, &row.Port, &row.GameCode, &row.Engine, &row.RconPasswordEnc,
		&row.ActiveMap, &row.IgnoreBots, &row.SkillMaxChange, &row.SuicidePenalty, &row.TeamkillPenalty, &row.TeamkillBonus,
	)
	return row, err
}

func (p *Postgres) FindServerByAddress(ctx context.Context, address string, port int) (ServerRow, bool, error) {
	row, err := p.selectServer(ctx, address, port)
	if errors.Is(err, sql.ErrNoRows) {
		return ServerRow{}, false, nil
	}
	if err != nil {
		return ServerRow{}, false, oops.Wrap(err)
	}
	return row, true, nil
}

func (p *Postgres) FindServerByTokenHash(ctx context.Context, tokenHash string) (ServerRow, bool, error) {
	q, args, err := psql.Select("id", "address", "port", "game_code", "engine", "rcon_password_enc",
		"active_map", "ignore_bots", "skill_max_change", "suicide_penalty", "teamkill_penalty", "teamkill_bonus",
		"token_hash", "token_prefix").
		From("servers").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return ServerRow{}, false, oops.Wrap(err)
	}
	var row ServerRow
	err = p.exec.QueryRowContext(ctx, q, args...).Scan(
		&row.ID, &row.Address, &row.Port, &row.GameCode, &row.Engine, &row.RconPasswordEnc,
		&row.ActiveMap, &row.IgnoreBots, &row.SkillMaxChange, &row.SuicidePenalty, &row.TeamkillPenalty, &row.TeamkillBonus,
		&row.TokenHash, &row.TokenPrefix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ServerRow{}, false, nil
	}
	if err != nil {
		return ServerRow{}, false, oops.Wrap(err)
	}
	return row, true, nil
}

func (p *Postgres) SetServerToken(ctx context.Context, serverID model.ServerID, tokenHash, tokenPrefix string) error {
	q, args, err := psql.Update("servers").
		Set("token_hash", tokenHash).
		Set("token_prefix", tokenPrefix).
		Where(squirrel.Eq{"id": serverID}).
		ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) UpsertPlayer(ctx context.Context, game, uniqueID, name string) (PlayerRow, error) {
	q, args, err := psql.Insert("players").
		Columns("game_code", "unique_id", "name").
		Values(game, uniqueID, name).
		Suffix("ON CONFLICT (game_code, unique_id) DO UPDATE SET name = EXCLUDED.name RETURNING id, game_code, unique_id, name, skill, kills, deaths").
		ToSql()
	if err != nil {
		return PlayerRow{}, oops.Wrap(err)
	}
	var row PlayerRow
	if err := p.exec.QueryRowContext(ctx, q, args...).Scan(
		&row.ID, &row.GameCode, &row.UniqueID, &row.Name, &row.Skill, &row.Kills, &row.Deaths,
	); err != nil {
		return PlayerRow{}, oops.Wrapf(err, "upserting player %s/%s", game, uniqueID)
	}
	return row, nil
}

func (p *Postgres) FindPlayersByID(ctx context.Context, ids []model.PlayerID) (map[model.PlayerID]PlayerRow, error) {
	out := make(map[model.PlayerID]PlayerRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]interface{}, len(ids))
	for i, id := range ids {
		raw[i] = id
	}
	q, args, err := psql.Select("id", "game_code", "unique_id", "name", "skill", "kills", "deaths").
		From("players").
		Where(squirrel.Eq{"id": raw}).
		ToSql()
	if err != nil {
		return nil, oops.Wrap(err)
	}
	rows, err := p.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var row PlayerRow
		if err := rows.Scan(&row.ID, &row.GameCode, &row.UniqueID, &row.Name, &row.Skill, &row.Kills, &row.Deaths); err != nil {
			return nil, oops.Wrap(err)
		}
		out[row.ID] = row
	}
	return out, rows.Err()
}

func (p *Postgres) GetPlayerSkill(ctx context.Context, id model.PlayerID) (int, bool, error) {
	q, args, err := psql.Select("skill").From("players").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, false, oops.Wrap(err)
	}
	var skill int
	err = p.exec.QueryRowContext(ctx, q, args...).Scan(&skill)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Wrap(err)
	}
	return skill, true, nil
}

func (p *Postgres) GetPlayerRank(ctx context.Context, id model.PlayerID) (int, bool, error) {
	skill, ok, err := p.GetPlayerSkill(ctx, id)
	if err != nil || !ok {
		return 0, ok, err
	}
	q, args, err := psql.Select("count(*) + 1").From("players").Where(squirrel.Gt{"skill": skill}).ToSql()
	if err != nil {
		return 0, false, oops.Wrap(err)
	}
	var rank int
	if err := p.exec.QueryRowContext(ctx, q, args...).Scan(&rank); err != nil {
		return 0, false, oops.Wrap(err)
	}
	return rank, true, nil
}

func (p *Postgres) ApplySkillDelta(ctx context.Context, id model.PlayerID, delta int) error {
	q, args, err := psql.Update("players").
		Set("skill", squirrel.Expr("GREATEST(0, skill + ?)", delta)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) FindAction(ctx context.Context, game, code string, team model.Team) (ActionRow, bool, error) {
	// Team-specific row preferred over the team-blank row (§4.8 property 9):
	// order by whether team matches the requested team, descending.
	q, args, err := psql.Select("game_code", "code", "team", "reward_player", "reward_team").
		From("actions").
		Where(squirrel.Eq{"game_code": game, "code": code}).
		Where(squirrel.Or{squirrel.Eq{"team": team}, squirrel.Eq{"team": ""}}).
		OrderByClause(squirrel.Expr("(team = ?) DESC", team)).
		Limit(1).
		ToSql()
	if err != nil {
		return ActionRow{}, false, oops.Wrap(err)
	}
	var row ActionRow
	err = p.exec.QueryRowContext(ctx, q, args...).Scan(&row.GameCode, &row.Code, &row.Team, &row.RewardPlayer, &row.RewardTeam)
	if errors.Is(err, sql.ErrNoRows) {
		return ActionRow{}, false, nil
	}
	if err != nil {
		return ActionRow{}, false, oops.Wrap(err)
	}
	return row, true, nil
}

func (p *Postgres) FindWeapon(ctx context.Context, game, code string) (WeaponRow, bool, error) {
	q, args, err := psql.Select("game_code", "code", "name", "modifier", "kills", "headshots").
		From("weapons").
		Where(squirrel.Eq{"game_code": game, "code": code}).
		ToSql()
	if err != nil {
		return WeaponRow{}, false, oops.Wrap(err)
	}
	var row WeaponRow
	err = p.exec.QueryRowContext(ctx, q, args...).Scan(&row.GameCode, &row.Code, &row.Name, &row.Modifier, &row.Kills, &row.Headshots)
	if errors.Is(err, sql.ErrNoRows) {
		return WeaponRow{}, false, nil
	}
	if err != nil {
		return WeaponRow{}, false, oops.Wrap(err)
	}
	return row, true, nil
}

func (p *Postgres) UpsertWeaponStats(ctx context.Context, game, code string, kills, headshots int) error {
	q, args, err := psql.Insert("weapons").
		Columns("game_code", "code", "kills", "headshots").
		Values(game, code, kills, headshots).
		Suffix("ON CONFLICT (game_code, code) DO UPDATE SET kills = weapons.kills + EXCLUDED.kills, headshots = weapons.headshots + EXCLUDED.headshots").
		ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) RecordFrag(ctx context.Context, killerID, victimID model.PlayerID, serverID model.ServerID, mapName, weapon string, headshot bool) error {
	return p.insertEvent(ctx, "frags", map[string]interface{}{
		"killer_id": killerID, "victim_id": victimID, "server_id": serverID, "map": mapName, "weapon": weapon, "headshot": headshot,
	})
}

func (p *Postgres) RecordChat(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, message string) error {
	return p.insertEvent(ctx, "chat_events", map[string]interface{}{"player_id": playerID, "server_id": serverID, "message": message})
}

func (p *Postgres) RecordConnect(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, address string) error {
	return p.insertEvent(ctx, "connect_events", map[string]interface{}{"player_id": playerID, "server_id": serverID, "address": address})
}

func (p *Postgres) RecordDisconnect(ctx context.Context, playerID model.PlayerID, serverID model.ServerID) error {
	return p.insertEvent(ctx, "disconnect_events", map[string]interface{}{"player_id": playerID, "server_id": serverID})
}

func (p *Postgres) RecordAction(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, actionCode string, reward int) error {
	return p.insertEvent(ctx, "action_events", map[string]interface{}{"player_id": playerID, "server_id": serverID, "action_code": actionCode, "reward": reward})
}

func (p *Postgres) RecordTeamBonusBatch(ctx context.Context, playerIDs []model.PlayerID, serverID model.ServerID, actionCode string, rewardEach int) error {
	for _, id := range playerIDs {
		if err := p.RecordAction(ctx, id, serverID, actionCode, rewardEach); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) RecordWorldAction(ctx context.Context, serverID model.ServerID, actionCode string) error {
	return p.insertEvent(ctx, "world_action_events", map[string]interface{}{"server_id": serverID, "action_code": actionCode})
}

func (p *Postgres) RecordSuicide(ctx context.Context, playerID model.PlayerID, serverID model.ServerID, weapon string) error {
	return p.insertEvent(ctx, "suicide_events", map[string]interface{}{"player_id": playerID, "server_id": serverID, "weapon": weapon})
}

func (p *Postgres) RecordTeamkill(ctx context.Context, killerID, victimID model.PlayerID, serverID model.ServerID, weapon string) error {
	return p.insertEvent(ctx, "teamkill_events", map[string]interface{}{"killer_id": killerID, "victim_id": victimID, "server_id": serverID, "weapon": weapon})
}

func (p *Postgres) insertEvent(ctx context.Context, table string, fields map[string]interface{}) error {
	builder := psql.Insert(table)
	cols := make([]string, 0, len(fields))
	vals := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		cols = append(cols, k)
		vals = append(vals, v)
	}
	q, args, err := builder.Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) IncrementServerRounds(ctx context.Context, serverID model.ServerID) error {
	q, args, err := psql.Update("servers").Set("map_rounds", squirrel.Expr("map_rounds + 1")).Where(squirrel.Eq{"id": serverID}).ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) UpdateTeamWins(ctx context.Context, serverID model.ServerID, team model.Team) error {
	column := "map_ct_wins"
	if team == model.TeamTerrorist {
		column = "map_t_wins"
	}
	q, args, err := psql.Update("servers").Set(column, squirrel.Expr(column+" + 1")).Where(squirrel.Eq{"id": serverID}).ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) ResetMapStats(ctx context.Context, serverID model.ServerID, newMap string, playerCount int) error {
	q, args, err := psql.Update("servers").
		SetMap(map[string]interface{}{
			"active_map": newMap, "map_rounds": 0, "map_ct_wins": 0, "map_t_wins": 0, "map_start_player_count": playerCount,
		}).
		Where(squirrel.Eq{"id": serverID}).
		ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

func (p *Postgres) CreatePlayerHistory(ctx context.Context, playerID model.PlayerID, day string, kills, deaths, skill int) error {
	// Same-day aggregation (§4.8 property 10): a second call for the
	// same (player, day) adds to the existing row's counters.
	q, args, err := psql.Insert("player_history").
		Columns("player_id", "day", "kills", "deaths", "skill").
		Values(playerID, day, kills, deaths, skill).
		Suffix(`ON CONFLICT (player_id, day) DO UPDATE SET
			kills = player_history.kills + EXCLUDED.kills,
			deaths = player_history.deaths + EXCLUDED.deaths,
			skill = EXCLUDED.skill`).
		ToSql()
	if err != nil {
		return oops.Wrap(err)
	}
	_, err = p.exec.ExecContext(ctx, q, args...)
	return err
}

// Transaction runs fn with a Repository backed by a *sql.Tx; all writes
// inside fn commit or roll back together, satisfying §4.6's one
// transaction per event invariant.
func (p *Postgres) Transaction(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin transaction: %w", err)
	}
	txRepo := &Postgres{db: p.db, exec: tx}

	if err := fn(ctx, txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("repository: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
