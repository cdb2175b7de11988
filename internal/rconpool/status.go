package rconpool

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// playersLinePattern matches "players : <n> (<m> max)" in a status response.
var playersLinePattern = regexp.MustCompile(`players\s*:\s*(\d+)\s*\((\d+)\s*max\)`)

// ParseStatus applies the §4.3 status grammar: hostname:/version:/map:/fps:
// prefixed lines yield the obvious fields; "players : N (M max)" yields
// total/max counts. botCount is stored as BotCount unchanged; the body
// is not scanned for bot rows. The status scraper passes 0, so scraped
// statuses always report BotCount 0.
func ParseStatus(body string, botCount int) model.ServerStatusData {
	var out model.ServerStatusData

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "hostname:"):
			out.Hostname = strings.TrimSpace(strings.TrimPrefix(line, "hostname:"))
		case strings.HasPrefix(line, "version:"):
			out.Version = strings.TrimSpace(strings.TrimPrefix(line, "version:"))
		case strings.HasPrefix(line, "map:"):
			out.Map = strings.TrimSpace(strings.TrimPrefix(line, "map:"))
		case strings.HasPrefix(line, "fps:"):
			if fps, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "fps:")), 64); err == nil {
				out.FPS = fps
			}
		default:
			if m := playersLinePattern.FindStringSubmatch(line); m != nil {
				if total, err := strconv.Atoi(m[1]); err == nil {
					out.TotalPlayers = total
				}
				if max, err := strconv.Atoi(m[2]); err == nil {
					out.MaxPlayers = max
				}
			}
		}
	}

	out.BotCount = botCount
	out.ActivePlayers = out.TotalPlayers
	return out
}

// IgnoreBotsTruthy implements the §4.3 tri-state IgnoreBots config
// parsing: truthy strings {1,true,yes,on}, falsy {0,false,no,off},
// default false.
func IgnoreBotsTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ActiveWithBots folds IgnoreBots into the reported active_players count:
// when IgnoreBots is set, bots are excluded from the active count.
func ActiveWithBots(status model.ServerStatusData, ignoreBots bool) int {
	if ignoreBots {
		return status.TotalPlayers - status.BotCount
	}
	return status.TotalPlayers
}

// Scraper runs the §4.3 periodic status-scrape scheduler: every
// interval, it asks lookup which servers are eligible (have RCON
// credentials and a last-event within the active window), issues
// "status" against each, parses the response, and publishes a
// synthetic ServerStatus event. Per-server failures are logged and
// never fatal.
type Scraper struct {
	pool    *Pool
	lookup  EligibilityLookup
	maps    ServerMapLookup
	sink    StatusSink
	cfg     Config
	stopped chan struct{}
}

// EligibilityLookup lists servers currently eligible for scraping.
type EligibilityLookup interface {
	EligibleServers(ctx context.Context, activeWindow time.Duration) ([]model.ServerID, error)
}

// ServerMapLookup reports the map a server row last recorded, so the
// scraper can detect an out-of-band map change (S6: the scrape
// reports a different map than the stored row).
type ServerMapLookup interface {
	ActiveMap(ctx context.Context, id model.ServerID) (string, error)
}

// NewScraper builds a scraper bound to pool. maps may be the same
// concrete value as lookup (both are satisfied by rconadapter.Lookup).
func NewScraper(pool *Pool, lookup EligibilityLookup, maps ServerMapLookup, sink StatusSink, cfg Config) *Scraper {
	return &Scraper{pool: pool, lookup: lookup, maps: maps, sink: sink, cfg: cfg.withDefaults(), stopped: make(chan struct{})}
}

// Run blocks, scraping on cfg.StatusInterval until ctx is cancelled.
func (s *Scraper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(s.stopped)
			return
		case <-ticker.C:
			s.scrapeOnce(ctx)
		}
	}
}

func (s *Scraper) scrapeOnce(ctx context.Context) {
	ids, err := s.lookup.EligibleServers(ctx, s.cfg.ActiveWindow)
	if err != nil {
		return
	}
	for _, id := range ids {
		body, err := s.pool.GetStatus(ctx, id)
		if err != nil {
			s.pool.log.Warn().Int64("server_id", int64(id)).Err(err).Msg("status scrape failed")
			continue
		}
		status := ParseStatus(body, 0)
		if s.sink == nil {
			continue
		}
		s.sink.PublishStatus(ctx, id, status)
		s.checkMapChange(ctx, id, status)
	}
}

// checkMapChange implements S6: when the scrape's reported map
// differs from the server row's last-known one, it publishes a
// MapChangeData event so the pipeline can reset_map_stats. An empty
// scraped or stored map means the grammar didn't find a "map:" line
// or the row has never been scraped yet; either way there is nothing
// trustworthy to diff against, so no event is published.
func (s *Scraper) checkMapChange(ctx context.Context, id model.ServerID, status model.ServerStatusData) {
	if s.maps == nil || status.Map == "" {
		return
	}
	previous, err := s.maps.ActiveMap(ctx, id)
	if err != nil {
		s.pool.log.Warn().Int64("server_id", int64(id)).Err(err).Msg("active map lookup failed")
		return
	}
	if previous == "" || previous == status.Map {
		return
	}
	s.sink.PublishMapChange(ctx, id, model.MapChangeData{
		PreviousMap: previous,
		NewMap:      status.Map,
		PlayerCount: status.ActivePlayers,
	})
}
