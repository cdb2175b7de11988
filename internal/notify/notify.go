// Package notify renders the §6 in-game message templates and
// dispatches them as an RCON "say" on the server the triggering event
// came from.
//
// Grounded on the teacher's internal/event_manager for the
// publish-after-persist shape (notification runs after the fact and
// never blocks or rolls back the write it describes) and on
// internal/rcon's command-execution surface, which this package
// drives through the narrow Executor port below instead of importing
// internal/rconpool directly, keeping the dependency direction the
// same as internal/repository's port pattern.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

// maxLoggedMessageLen truncates only the copy written to logs; the
// full message is always sent to the server (§4.9).
const maxLoggedMessageLen = 100

// Executor hands one RCON command off to a server's bounded send
// queue, satisfied by internal/rconpool.Pool. Enqueue never blocks and
// never returns an error: a queue-full drop or a downstream Execute
// failure is the pool's concern (§5 back-pressure, §7 "logged only,
// never retried"), not the dispatcher's.
type Executor interface {
	Enqueue(serverID model.ServerID, command string)
}

// Templates holds the per-server §6 message templates; DefaultTemplates
// returns the spec's literal defaults.
type Templates struct {
	Kill         string
	KillHeadshot string
	Suicide      string
	Teamkill     string
	Action       string
	Team         string
	Connect      string
	Disconnect   string
}

// DefaultTemplates returns the spec's built-in templates (§6). Exactly
// one of Kill/KillHeadshot renders per kill event, never both.
func DefaultTemplates() Templates {
	return Templates{
		Kill:         "[Stats]: {killerName} (#{killerRank}) got {points} for killing {victimName} (#{victimRank})",
		KillHeadshot: "[Stats]: {killerName} (#{killerRank}) got {points} for killing {victimName} (#{victimRank}) with a headshot",
		Suicide:      "[Stats]: {playerName} (#{playerRank}) lost {points} for suicide",
		Teamkill:     "[Stats]: {killerName} lost {points} for team killing {victimName}",
		Action:       "[Stats]: {playerName} got {points} for {action}",
		Team:         "[Stats]: Team {team} got {points} for {action}",
		Connect:      "[Stats]: {playerName} connected",
		Disconnect:   "[Stats]: {playerName} (#{playerRank}) disconnected",
	}
}

// Dispatcher renders and sends §4.9 notifications. It satisfies
// pipeline.Notifier.
type Dispatcher struct {
	repo      repository.Repository
	rcon      Executor
	templates Templates
	log       zerolog.Logger
}

// New builds a Dispatcher. A zero Templates uses DefaultTemplates.
func New(repo repository.Repository, rcon Executor, templates Templates, log zerolog.Logger) *Dispatcher {
	if templates == (Templates{}) {
		templates = DefaultTemplates()
	}
	return &Dispatcher{repo: repo, rcon: rcon, templates: templates, log: log.With().Str("component", "notify").Logger()}
}

// Notify renders the message for evt (if its type has one) and queues
// a "say" on the originating server. Queueing is fire-and-forget: a
// full queue or a failed send is the pool's concern, never returned
// here as an error the caller must react to.
func (d *Dispatcher) Notify(ctx context.Context, evt model.Event, deltas map[model.PlayerID]int) error {
	msg, ok, err := d.render(ctx, evt, deltas)
	if err != nil {
		return fmt.Errorf("notify: rendering message: %w", err)
	}
	if !ok {
		return nil
	}

	d.rcon.Enqueue(evt.ServerID, "say "+msg)
	d.log.Debug().Str("message", truncateForLog(msg)).Msg("notification queued")
	return nil
}

func truncateForLog(msg string) string {
	if len(msg) <= maxLoggedMessageLen {
		return msg
	}
	return msg[:maxLoggedMessageLen] + "..."
}

// render builds the substituted message for evt, or ok=false if the
// event type carries no notification template.
func (d *Dispatcher) render(ctx context.Context, evt model.Event, deltas map[model.PlayerID]int) (string, bool, error) {
	switch data := evt.Data.(type) {
	case model.PlayerKillData:
		return d.renderKill(ctx, evt, data, deltas)

	case model.PlayerTeamkillData:
		return d.renderTeamkill(ctx, evt, deltas)

	case model.PlayerSuicideData:
		return d.renderSuicide(ctx, evt, deltas)

	case model.PlayerActionData:
		return d.renderAction(evt.Meta.Actor.Name, deltas[evt.Meta.Actor.PlayerID], data.Action), true, nil

	case model.TeamActionData:
		return d.renderTeam(data.Team, deltas[evt.Meta.Actor.PlayerID], data.Action), true, nil

	case model.PlayerConnectData:
		return substitute(d.templates.Connect, map[string]string{"playerName": evt.Meta.Actor.Name}), true, nil

	case model.PlayerDisconnectData:
		rank := d.rankOf(ctx, evt.Meta.Actor.PlayerID)
		return substitute(d.templates.Disconnect, map[string]string{
			"playerName": evt.Meta.Actor.Name,
			"playerRank": rank,
		}), true, nil
	}
	return "", false, nil
}

func (d *Dispatcher) renderKill(ctx context.Context, evt model.Event, data model.PlayerKillData, deltas map[model.PlayerID]int) (string, bool, error) {
	killer, victim := evt.Meta.Actor, *evt.Meta.Target
	tmpl := d.templates.Kill
	if data.Headshot {
		tmpl = d.templates.KillHeadshot
	}
	return substitute(tmpl, map[string]string{
		"killerName": killer.Name,
		"killerRank": d.rankOf(ctx, killer.PlayerID),
		"victimName": victim.Name,
		"victimRank": d.rankOf(ctx, victim.PlayerID),
		"points":     formatPoints(deltas[killer.PlayerID]),
	}), true, nil
}

func (d *Dispatcher) renderTeamkill(_ context.Context, evt model.Event, deltas map[model.PlayerID]int) (string, bool, error) {
	killer, victim := evt.Meta.Actor, *evt.Meta.Target
	return substitute(d.templates.Teamkill, map[string]string{
		"killerName": killer.Name,
		"victimName": victim.Name,
		"points":     formatPoints(deltas[killer.PlayerID]),
	}), true, nil
}

func (d *Dispatcher) renderSuicide(ctx context.Context, evt model.Event, deltas map[model.PlayerID]int) (string, bool, error) {
	actor := evt.Meta.Actor
	return substitute(d.templates.Suicide, map[string]string{
		"playerName": actor.Name,
		"playerRank": d.rankOf(ctx, actor.PlayerID),
		"points":     formatPoints(deltas[actor.PlayerID]),
	}), true, nil
}

func (d *Dispatcher) renderAction(playerName string, points int, action string) string {
	return substitute(d.templates.Action, map[string]string{
		"playerName": playerName,
		"points":     formatPoints(points),
		"action":     action,
	})
}

func (d *Dispatcher) renderTeam(team model.Team, points int, action string) string {
	return substitute(d.templates.Team, map[string]string{
		"team":   string(team),
		"points": formatPoints(points),
		"action": action,
	})
}

func (d *Dispatcher) rankOf(ctx context.Context, id model.PlayerID) string {
	rank, ok, err := d.repo.GetPlayerRank(ctx, id)
	if err != nil || !ok {
		return "?"
	}
	return fmt.Sprintf("%d", rank)
}

// formatPoints renders a delta with an explicit sign, per §6.
func formatPoints(delta int) string {
	if delta >= 0 {
		return fmt.Sprintf("+%d", delta)
	}
	return fmt.Sprintf("%d", delta)
}

// substitute replaces every {key} in tmpl with its value. Templates
// use plain curly-brace placeholders rather than Go's {{ }} template
// syntax, so text/template does not apply; a manual pass is the
// direct, idiomatic fit for this substitution shape.
func substitute(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
