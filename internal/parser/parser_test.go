package parser

import (
	"testing"
	"time"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

func mustParse(t *testing.T, p *Parser, line string) model.Event {
	t.Helper()
	ev, err := p.ParseLine(line, model.ServerID(1), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return ev
}

func TestParseKillWithHeadshot(t *testing.T) {
	p := New()
	line := `L 07/15/2024 - 22:35:05: "Killer<2><STEAM_1:0:111><TERRORIST>" [93 303 73] killed "Victim<3><STEAM_1:0:222><CT>" [35 302 73] with "ak47" (headshot)`
	ev := mustParse(t, p, line)

	if ev.Type() != model.EventPlayerKill {
		t.Fatalf("want PlayerKill got %v", ev.Type())
	}
	data, ok := ev.Data.(model.PlayerKillData)
	if !ok {
		t.Fatalf("want PlayerKillData got %T", ev.Data)
	}
	if data.Weapon != "ak47" || !data.Headshot {
		t.Fatalf("unexpected data: %+v", data)
	}
	if ev.Meta.Actor.Name != "Killer" || ev.Meta.Actor.UniqueID != "STEAM_1:0:111" || ev.Meta.Actor.Team != "TERRORIST" {
		t.Fatalf("unexpected actor: %+v", ev.Meta.Actor)
	}
	if ev.Meta.Target == nil || ev.Meta.Target.Name != "Victim" || ev.Meta.Target.UniqueID != "STEAM_1:0:222" || ev.Meta.Target.Team != "CT" {
		t.Fatalf("unexpected target: %+v", ev.Meta.Target)
	}
}

func TestParseTeamkillDiscrimination(t *testing.T) {
	p := New()
	line := `L 07/15/2024 - 22:35:05: "Killer<2><STEAM_1:0:111><TERRORIST>" [93 303 73] killed "Victim<3><STEAM_1:0:222><TERRORIST>" [35 302 73] with "ak47" (headshot)`
	ev := mustParse(t, p, line)

	if ev.Type() != model.EventPlayerTeamkill {
		t.Fatalf("want PlayerTeamkill got %v", ev.Type())
	}
}

func TestParseBotSuicide(t *testing.T) {
	p := New()
	line := `L 07/15/2024 - 22:35:05: "BotName<2><BOT><CT>" [93 303 73] committed suicide with "hegrenade"`
	ev := mustParse(t, p, line)

	if ev.Type() != model.EventPlayerSuicide {
		t.Fatalf("want PlayerSuicide got %v", ev.Type())
	}
	if !ev.Meta.Actor.IsBot() {
		t.Fatalf("expected actor to be detected as bot")
	}
	data := ev.Data.(model.PlayerSuicideData)
	if data.Weapon != "hegrenade" {
		t.Fatalf("unexpected weapon %q", data.Weapon)
	}
}

func TestParseDeadChat(t *testing.T) {
	p := New()
	line := `L 06/28/2025 - 09:09:32: "Brandon<2><BOT><TERRORIST>" say "hello" (dead)`
	ev := mustParse(t, p, line)

	if ev.Type() != model.EventChatMessage {
		t.Fatalf("want ChatMessage got %v", ev.Type())
	}
	data := ev.Data.(model.ChatMessageData)
	if data.Message != "hello" || data.Team != "TERRORIST" || !data.IsDead {
		t.Fatalf("unexpected chat data: %+v", data)
	}
}

func TestParseConnectDisconnectEntry(t *testing.T) {
	p := New()

	ev := mustParse(t, p, `L 07/15/2024 - 22:35:05: "Player<2><STEAM_1:0:111><>" connected, address "1.2.3.4:27005"`)
	if ev.Type() != model.EventPlayerConnect {
		t.Fatalf("want PlayerConnect got %v", ev.Type())
	}
	if ev.Data.(model.PlayerConnectData).Address != "1.2.3.4:27005" {
		t.Fatalf("unexpected address")
	}

	ev = mustParse(t, p, `L 07/15/2024 - 22:35:05: "Player<2><STEAM_1:0:111><CT>" disconnected (reason "Disconnect")`)
	if ev.Type() != model.EventPlayerDisconnect {
		t.Fatalf("want PlayerDisconnect got %v", ev.Type())
	}
	if ev.Data.(model.PlayerDisconnectData).Reason != "Disconnect" {
		t.Fatalf("unexpected reason")
	}

	ev = mustParse(t, p, `L 07/15/2024 - 22:35:05: "Player<2><STEAM_1:0:111><CT>" entered the game`)
	if ev.Type() != model.EventPlayerEntry {
		t.Fatalf("want PlayerEntry got %v", ev.Type())
	}
}

func TestParseTeamAndWorldTriggers(t *testing.T) {
	p := New()

	ev := mustParse(t, p, `L 07/15/2024 - 22:35:05: Team "CT" triggered "Round_Win"`)
	if ev.Type() != model.EventTeamAction {
		t.Fatalf("want TeamAction got %v", ev.Type())
	}
	data := ev.Data.(model.TeamActionData)
	if data.Team != "CT" || data.Action != "Round_Win" {
		t.Fatalf("unexpected team action: %+v", data)
	}

	ev = mustParse(t, p, `L 07/15/2024 - 22:35:05: World triggered "Round_Start"`)
	if ev.Type() != model.EventWorldAction {
		t.Fatalf("want WorldAction got %v", ev.Type())
	}
	if ev.Data.(model.WorldActionData).Action != "Round_Start" {
		t.Fatalf("unexpected world action")
	}
}

func TestParsePlayerVsPlayerAction(t *testing.T) {
	p := New()
	line := `L 07/15/2024 - 22:35:05: "Medic<2><STEAM_1:0:111><CT>" triggered "Medic_Heal" against "Patient<3><STEAM_1:0:222><CT>"`
	ev := mustParse(t, p, line)

	if ev.Type() != model.EventPlayerPlayerAction {
		t.Fatalf("want PlayerPlayerAction got %v", ev.Type())
	}
	if ev.Meta.Target == nil || ev.Meta.Target.Name != "Patient" {
		t.Fatalf("unexpected target: %+v", ev.Meta.Target)
	}
}

func TestUnsupportedAndUnrecognizedLines(t *testing.T) {
	p := New()

	if p.CanParse("not a log line") {
		t.Fatalf("expected prefix mismatch to be rejected by CanParse")
	}
	if _, err := p.ParseLine("not a log line", model.ServerID(1), time.Now()); err != ErrNoPrefixMatch {
		t.Fatalf("want ErrNoPrefixMatch got %v", err)
	}

	_, err := p.ParseLine(`L 07/15/2024 - 22:35:05: some completely novel tail`, model.ServerID(1), time.Now())
	if err != ErrUnsupportedLine {
		t.Fatalf("want ErrUnsupportedLine got %v", err)
	}
}
