// Package parser turns raw HL-family log lines into typed model.Event
// values (§4.4). Parsers are stateless and reentrant: CanParse and
// ParseLine hold no mutable state across calls.
//
// Grounded on two sources: the teacher's internal/logwatcher_manager's
// regex-dispatch shape (LogParser{regex, onMatch}, a table walked in
// order) and the retrieved csgolog package (FlowingSPDG/csgo-log), whose
// LogLinePattern ("L MM/DD/YYYY - HH:MM:SS: ") is the closest real-world
// analogue to §4.4's pattern grammar.
package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// ErrUnsupportedLine is returned for lines matching the timestamp prefix
// but no tail pattern (§4.4: counted, not a hard error).
var ErrUnsupportedLine = errors.New("parser: unsupported log line")

// ErrNoPrefixMatch is returned for lines that don't even match the
// "L MM/DD/YYYY - HH:MM:SS: " prefix; callers drop these silently.
var ErrNoPrefixMatch = errors.New("parser: line does not match HL log prefix")

// linePrefix matches the standard HL-family timestamp prefix, capturing
// the remaining tail.
var linePrefix = regexp.MustCompile(`^L \d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2}: (.*)$`)

// identityGroup matches `"<name><uid><steam><team>"`, discarding any
// trailing `[x y z]` coordinate block some engines append.
const identityGroup = `"([^"<]+)<(\d+)><([^>]*)><([^>]*)>"(?:\s*\[-?\d+ -?\d+ -?\d+\])?`

var (
	reConnect        = regexp.MustCompile(`^` + identityGroup + ` connected, address "([^"]*)"$`)
	reDisconnect     = regexp.MustCompile(`^` + identityGroup + ` disconnected(?: \(reason "([^"]*)"\))?$`)
	reEntry          = regexp.MustCompile(`^` + identityGroup + ` entered the game$`)
	reChangeTeam     = regexp.MustCompile(`^` + identityGroup + ` joined team "([^"]*)"$`)
	reChangeName     = regexp.MustCompile(`^` + identityGroup + ` changed name to "([^"]*)"$`)
	reKill           = regexp.MustCompile(`^` + identityGroup + ` killed ` + identityGroup + ` with "([^"]*)"( \(headshot\))?$`)
	reSuicide        = regexp.MustCompile(`^` + identityGroup + ` committed suicide with "([^"]*)"$`)
	reSay            = regexp.MustCompile(`^` + identityGroup + ` say(?:_team)? "([^"]*)"( \(dead\))?$`)
	reTriggeredAgain = regexp.MustCompile(`^` + identityGroup + ` triggered "([^"]*)" against ` + identityGroup + `$`)
	reTriggered      = regexp.MustCompile(`^` + identityGroup + ` triggered "([^"]*)"$`)
	reTeamTriggered  = regexp.MustCompile(`^Team "([^"]*)" triggered "([^"]*)"$`)
	reWorldTriggered = regexp.MustCompile(`^World triggered "([^"]*)"$`)
)

// Parser implements the HL-family log grammar described in §4.4.
type Parser struct{}

// New builds a stateless HL-family parser.
func New() *Parser { return &Parser{} }

// CanParse reports whether line matches the "L MM/DD/YYYY - HH:MM:SS: " prefix.
func (p *Parser) CanParse(line string) bool {
	return linePrefix.MatchString(line)
}

// ParseLine turns one log line into a model.Event for serverID, stamped
// with ts (ingestion time, not the log line's own low-resolution
// timestamp — the pipeline orders on arrival, per §5).
func (p *Parser) ParseLine(line string, serverID model.ServerID, ts time.Time) (model.Event, error) {
	m := linePrefix.FindStringSubmatch(line)
	if m == nil {
		return model.Event{}, ErrNoPrefixMatch
	}
	data, meta, err := parseTail(m[1])
	if err != nil {
		return model.Event{}, err
	}
	return model.NewEvent(serverID, ts, meta, data), nil
}

func parseTail(tail string) (model.EventData, model.Meta, error) {
	switch {
	case reKill.MatchString(tail):
		return parseKill(tail)
	case reConnect.MatchString(tail):
		mm := reConnect.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerConnectData{Address: mm[5]}, model.Meta{Actor: actor}, nil
	case reDisconnect.MatchString(tail):
		mm := reDisconnect.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerDisconnectData{Reason: mm[5]}, model.Meta{Actor: actor}, nil
	case reEntry.MatchString(tail):
		mm := reEntry.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerEntryData{}, model.Meta{Actor: actor}, nil
	case reChangeTeam.MatchString(tail):
		mm := reChangeTeam.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerChangeTeamData{NewTeam: model.Team(mm[5])}, model.Meta{Actor: actor}, nil
	case reChangeName.MatchString(tail):
		mm := reChangeName.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerChangeNameData{NewName: mm[5]}, model.Meta{Actor: actor}, nil
	case reSuicide.MatchString(tail):
		mm := reSuicide.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerSuicideData{Weapon: mm[5]}, model.Meta{Actor: actor}, nil
	case reSay.MatchString(tail):
		mm := reSay.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.ChatMessageData{Message: mm[5], Team: actor.Team, IsDead: mm[6] != ""}, model.Meta{Actor: actor}, nil
	case reTriggeredAgain.MatchString(tail):
		mm := reTriggeredAgain.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		target := identityFrom(mm[6:10])
		return model.PlayerPlayerActionData{Action: mm[5]}, model.Meta{Actor: actor, Target: &target}, nil
	case reTriggered.MatchString(tail):
		mm := reTriggered.FindStringSubmatch(tail)
		actor := identityFrom(mm[1:5])
		return model.PlayerActionData{Action: mm[5]}, model.Meta{Actor: actor}, nil
	case reTeamTriggered.MatchString(tail):
		mm := reTeamTriggered.FindStringSubmatch(tail)
		return model.TeamActionData{Team: model.Team(mm[1]), Action: mm[2]}, model.Meta{}, nil
	case reWorldTriggered.MatchString(tail):
		mm := reWorldTriggered.FindStringSubmatch(tail)
		return model.WorldActionData{Action: mm[1]}, model.Meta{}, nil
	default:
		return nil, model.Meta{}, ErrUnsupportedLine
	}
}

func parseKill(tail string) (model.EventData, model.Meta, error) {
	mm := reKill.FindStringSubmatch(tail)
	actor := identityFrom(mm[1:5])
	target := identityFrom(mm[5:9])
	weapon := mm[9]
	headshot := mm[10] != ""

	if actor.Team != "" && actor.Team == target.Team {
		return model.PlayerTeamkillData{Weapon: weapon, Headshot: headshot}, model.Meta{Actor: actor, Target: &target}, nil
	}
	return model.PlayerKillData{Weapon: weapon, Headshot: headshot}, model.Meta{Actor: actor, Target: &target}, nil
}

// identityFrom builds a model.Identity from the four identity capture
// groups [name, uid, steam, team]. The "BOT" sentinel lives in the steam
// slot, surfaced through Identity.UniqueID so Identity.IsBot() can check
// it uniformly regardless of event variant.
func identityFrom(groups []string) model.Identity {
	name, steam, team := groups[0], groups[2], groups[3]
	uid := steam
	if strings.EqualFold(steam, "BOT") {
		uid = "BOT"
	}
	return model.Identity{Name: name, UniqueID: uid, Team: model.Team(team)}
}
