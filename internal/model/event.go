package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags the sum type's variant. Dispatch on this tag is the
// compile-time-checkable replacement for the source's runtime handler
// registry (see SPEC_FULL.md, DESIGN NOTES).
type EventType string

const (
	EventPlayerConnect     EventType = "PlayerConnect"
	EventPlayerDisconnect  EventType = "PlayerDisconnect"
	EventPlayerEntry       EventType = "PlayerEntry"
	EventPlayerKill        EventType = "PlayerKill"
	EventPlayerSuicide     EventType = "PlayerSuicide"
	EventPlayerTeamkill    EventType = "PlayerTeamkill"
	EventPlayerChangeTeam  EventType = "PlayerChangeTeam"
	EventPlayerChangeName  EventType = "PlayerChangeName"
	EventPlayerAction      EventType = "PlayerAction"
	EventPlayerPlayerAction EventType = "PlayerPlayerAction"
	EventTeamAction        EventType = "TeamAction"
	EventWorldAction       EventType = "WorldAction"
	EventChatMessage       EventType = "ChatMessage"
	EventRoundStart        EventType = "RoundStart"
	EventRoundEnd          EventType = "RoundEnd"
	EventMapChange         EventType = "MapChange"
	EventServerStatus      EventType = "ServerStatus"
)

// Identity is the tagged-union replacement for a runtime-typed "meta"
// blob (SPEC_FULL.md DESIGN NOTES): every event variant that names a
// player fills this struct the same way, so enrichment code never has
// to type-switch on an interface{}.
type Identity struct {
	Name     string
	UniqueID string // platform identity token; "BOT" for server-controlled players
	Team     Team
	PlayerID PlayerID // attached by the pipeline's identity-resolution step; zero until resolved
}

// IsBot reports whether this identity's unique id is the literal bot sentinel.
func (i Identity) IsBot() bool { return i.UniqueID == "BOT" }

// Meta carries the identities extracted from a log line. Target is nil
// for single-actor events (connect, entry, suicide, chat, world/team
// actions) and populated for the two-player variants (kill, teamkill,
// player-vs-player action).
type Meta struct {
	Actor  Identity
	Target *Identity
}

// EventData is the variant payload. Each concrete type below implements
// it and is valid only for the matching EventType.
type EventData interface {
	EventType() EventType
}

type PlayerConnectData struct{ Address string }

func (PlayerConnectData) EventType() EventType { return EventPlayerConnect }

type PlayerDisconnectData struct{ Reason string }

func (PlayerDisconnectData) EventType() EventType { return EventPlayerDisconnect }

type PlayerEntryData struct{}

func (PlayerEntryData) EventType() EventType { return EventPlayerEntry }

type PlayerKillData struct {
	Weapon   string
	Headshot bool
}

func (PlayerKillData) EventType() EventType { return EventPlayerKill }

type PlayerSuicideData struct{ Weapon string }

func (PlayerSuicideData) EventType() EventType { return EventPlayerSuicide }

type PlayerTeamkillData struct {
	Weapon   string
	Headshot bool
}

func (PlayerTeamkillData) EventType() EventType { return EventPlayerTeamkill }

type PlayerChangeTeamData struct{ NewTeam Team }

func (PlayerChangeTeamData) EventType() EventType { return EventPlayerChangeTeam }

type PlayerChangeNameData struct{ NewName string }

func (PlayerChangeNameData) EventType() EventType { return EventPlayerChangeName }

type PlayerActionData struct{ Action string }

func (PlayerActionData) EventType() EventType { return EventPlayerAction }

type PlayerPlayerActionData struct{ Action string }

func (PlayerPlayerActionData) EventType() EventType { return EventPlayerPlayerAction }

type TeamActionData struct {
	Team   Team
	Action string
}

func (TeamActionData) EventType() EventType { return EventTeamAction }

type WorldActionData struct{ Action string }

func (WorldActionData) EventType() EventType { return EventWorldAction }

type ChatMessageData struct {
	Message string
	Team    Team
	IsDead  bool
}

func (ChatMessageData) EventType() EventType { return EventChatMessage }

type RoundStartData struct{ Map string }

func (RoundStartData) EventType() EventType { return EventRoundStart }

type RoundEndData struct {
	WinningTeam Team
	Tickets     int
}

func (RoundEndData) EventType() EventType { return EventRoundEnd }

type MapChangeData struct {
	PreviousMap string
	NewMap      string
	// PlayerCount is the active player count observed at the scrape
	// that detected the change, passed straight through to
	// reset_map_stats's map_start_player_count column (S6).
	PlayerCount int
}

func (MapChangeData) EventType() EventType { return EventMapChange }

// ServerStatusData is the synthetic event produced by the RCON pool's
// status-scrape scheduler (§4.3); it never comes from the log parser.
type ServerStatusData struct {
	Hostname      string
	Version       string
	Map           string
	FPS           float64
	TotalPlayers  int
	MaxPlayers    int
	BotCount      int
	ActivePlayers int // total or real-only, per the server's IgnoreBots setting
}

func (ServerStatusData) EventType() EventType { return EventServerStatus }

// Event is the common envelope propagated from ingress through the
// pipeline. CorrelationID starts equal to ID and is carried unchanged
// through any event derived from this one (e.g. a dead-letter record).
type Event struct {
	ID            uuid.UUID
	CorrelationID uuid.UUID
	ServerID      ServerID
	Timestamp     time.Time
	Meta          Meta
	Data          EventData
}

// NewEvent builds an envelope with a fresh ID and CorrelationID equal to it.
func NewEvent(serverID ServerID, ts time.Time, meta Meta, data EventData) Event {
	id := NewEventID()
	return Event{
		ID:            id,
		CorrelationID: id,
		ServerID:      serverID,
		Timestamp:     ts,
		Meta:          meta,
		Data:          data,
	}
}

// Type is a convenience accessor over Data.EventType().
func (e Event) Type() EventType {
	if e.Data == nil {
		return ""
	}
	return e.Data.EventType()
}
