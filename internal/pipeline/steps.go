package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// ResolveIdentities upserts the actor (and target, if present) and
// attaches their PlayerIDs to evt.Meta. Bots (UniqueID "BOT") still
// get a player row per game, keyed on the literal "BOT" unique id, so
// action/frag records always carry a valid PlayerID.
func ResolveIdentities(ctx context.Context, deps Dependencies, evt *model.Event, _ *stepState) error {
	actor, err := deps.repo.UpsertPlayer(ctx, deps.Game, evt.Meta.Actor.UniqueID, evt.Meta.Actor.Name)
	if err != nil {
		return fmt.Errorf("pipeline: resolving actor identity: %w", err)
	}
	evt.Meta.Actor.PlayerID = actor.ID

	if evt.Meta.Target != nil {
		target, err := deps.repo.UpsertPlayer(ctx, deps.Game, evt.Meta.Target.UniqueID, evt.Meta.Target.Name)
		if err != nil {
			return fmt.Errorf("pipeline: resolving target identity: %w", err)
		}
		evt.Meta.Target.PlayerID = target.ID
	}
	return nil
}

// scoreDelta pairs a player with the skill delta to apply; computed by
// ApplyScoring and consumed by Persist so the two steps stay separate
// (scoring math vs. the side effects of recording it).
type scoreDelta struct {
	playerID model.PlayerID
	delta    int
}

// ApplyScoring computes skill deltas for kill/teamkill/suicide events.
// Other event types pass through untouched.
func ApplyScoring(ctx context.Context, deps Dependencies, evt *model.Event, state *stepState) error {
	switch data := evt.Data.(type) {
	case model.PlayerKillData:
		killerSkill, _, err := deps.repo.GetPlayerSkill(ctx, evt.Meta.Actor.PlayerID)
		if err != nil {
			return fmt.Errorf("pipeline: loading killer skill: %w", err)
		}
		victimSkill, _, err := deps.repo.GetPlayerSkill(ctx, evt.Meta.Target.PlayerID)
		if err != nil {
			return fmt.Errorf("pipeline: loading victim skill: %w", err)
		}
		killerGames := 0 // the teacher's schema tracks a running kill/death total, not a games-played column; §4.7 treats 0 as "unranked", giving new players the highest K-factor
		modifier := 1.0
		if weapon, ok, err := deps.repo.FindWeapon(ctx, deps.Game, data.Weapon); err == nil && ok {
			modifier = weapon.Modifier
		}
		result := deps.Scorer.Kill(killerSkill, killerGames, victimSkill, modifier, data.Headshot)
		state.deltas = append(state.deltas,
			scoreDelta{playerID: evt.Meta.Actor.PlayerID, delta: result.KillerDelta},
			scoreDelta{playerID: evt.Meta.Target.PlayerID, delta: result.VictimDelta},
		)

	case model.PlayerTeamkillData:
		result := deps.Scorer.Teamkill()
		state.deltas = append(state.deltas,
			scoreDelta{playerID: evt.Meta.Actor.PlayerID, delta: result.KillerDelta},
			scoreDelta{playerID: evt.Meta.Target.PlayerID, delta: result.VictimDelta},
		)

	case model.PlayerSuicideData:
		state.deltas = append(state.deltas, scoreDelta{playerID: evt.Meta.Actor.PlayerID, delta: deps.Scorer.Suicide()})
	}
	return nil
}

// Persist records the event's side effects (frag/chat/connect/action
// rows, weapon tallies, skill deltas) through the transactional repo.
func Persist(ctx context.Context, deps Dependencies, evt *model.Event, state *stepState) error {
	for _, d := range state.deltas {
		if err := deps.repo.ApplySkillDelta(ctx, d.playerID, d.delta); err != nil {
			return fmt.Errorf("pipeline: applying skill delta: %w", err)
		}
	}

	switch data := evt.Data.(type) {
	case model.PlayerKillData:
		if err := deps.repo.RecordFrag(ctx, evt.Meta.Actor.PlayerID, evt.Meta.Target.PlayerID, evt.ServerID, "", data.Weapon, data.Headshot); err != nil {
			return err
		}
		headshots := 0
		if data.Headshot {
			headshots = 1
		}
		return deps.repo.UpsertWeaponStats(ctx, deps.Game, data.Weapon, 1, headshots)

	case model.PlayerTeamkillData:
		return deps.repo.RecordTeamkill(ctx, evt.Meta.Actor.PlayerID, evt.Meta.Target.PlayerID, evt.ServerID, data.Weapon)

	case model.PlayerSuicideData:
		return deps.repo.RecordSuicide(ctx, evt.Meta.Actor.PlayerID, evt.ServerID, data.Weapon)

	case model.PlayerConnectData:
		return deps.repo.RecordConnect(ctx, evt.Meta.Actor.PlayerID, evt.ServerID, data.Address)

	case model.PlayerDisconnectData:
		return deps.repo.RecordDisconnect(ctx, evt.Meta.Actor.PlayerID, evt.ServerID)

	case model.ChatMessageData:
		return deps.repo.RecordChat(ctx, evt.Meta.Actor.PlayerID, evt.ServerID, data.Message)

	case model.PlayerActionData:
		return persistAction(ctx, deps, evt.Meta.Actor, evt.ServerID, data.Action)

	case model.PlayerPlayerActionData:
		return persistAction(ctx, deps, evt.Meta.Actor, evt.ServerID, data.Action)

	case model.TeamActionData:
		action, ok, err := deps.repo.FindAction(ctx, deps.Game, data.Action, data.Team)
		if err != nil || !ok {
			return err
		}
		return deps.repo.RecordAction(ctx, evt.Meta.Actor.PlayerID, evt.ServerID, data.Action, action.RewardTeam)

	case model.WorldActionData:
		return deps.repo.RecordWorldAction(ctx, evt.ServerID, data.Action)

	case model.RoundEndData:
		if err := deps.repo.IncrementServerRounds(ctx, evt.ServerID); err != nil {
			return err
		}
		// An unknown winner (TeamNone) must never reach UpdateTeamWins:
		// it defaults to crediting CT, which would misattribute a round
		// no source actually reported a winner for.
		if data.WinningTeam == model.TeamNone {
			return nil
		}
		return deps.repo.UpdateTeamWins(ctx, evt.ServerID, data.WinningTeam)

	case model.MapChangeData:
		return deps.repo.ResetMapStats(ctx, evt.ServerID, data.NewMap, data.PlayerCount)
	}
	return nil
}

func persistAction(ctx context.Context, deps Dependencies, actor model.Identity, serverID model.ServerID, code string) error {
	action, ok, err := deps.repo.FindAction(ctx, deps.Game, code, actor.Team)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return deps.repo.RecordAction(ctx, actor.PlayerID, serverID, code, action.RewardPlayer)
}

// Notify renders and dispatches the in-game message for this event, if
// any. Failures are logged here, not returned, so a notification
// failure never rolls back the persisted event.
func Notify(ctx context.Context, deps Dependencies, evt *model.Event, state *stepState) error {
	deltas := make(map[model.PlayerID]int, len(state.deltas))
	for _, d := range state.deltas {
		deltas[d.playerID] = d.delta
	}
	if err := deps.Notifier.Notify(ctx, *evt, deltas); err != nil {
		log.Warn().Err(err).Str("event_id", evt.ID.String()).Msg("notification failed")
	}
	return nil
}
