// Package model holds the shared entity and event types for the stats
// daemon: servers, players, weapons, actions, and the tagged Event sum
// type that flows through the ingest -> parse -> pipeline chain.
package model

import "github.com/google/uuid"

// ServerID identifies a registered game server.
type ServerID int64

// PlayerID identifies a player row, keyed internally by (game, unique id).
type PlayerID int64

// EngineKind is the RCON wire family a server speaks.
type EngineKind string

const (
	EngineGoldSrc     EngineKind = "goldsrc"
	EngineSource      EngineKind = "source"
	EngineSource2009  EngineKind = "source2009"
)

// ConnectionMode describes how the daemon reaches a server's RCON port.
type ConnectionMode string

const (
	ConnectionDirect        ConnectionMode = "direct"
	ConnectionContainerHost ConnectionMode = "container-host"
)

// Team is the canonical team label used across kill/teamkill/change-team events.
type Team string

const (
	TeamNone       Team = ""
	TeamCT         Team = "CT"
	TeamTerrorist  Team = "TERRORIST"
	TeamSpectator  Team = "Spectator"
	TeamUnassigned Team = "Unassigned"
)

// NewEventID mints a fresh v4 UUID for an event envelope.
func NewEventID() uuid.UUID {
	return uuid.New()
}
