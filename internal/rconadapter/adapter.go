// Package rconadapter wires internal/repository and internal/cache
// into the narrow ports internal/rconpool.Pool and internal/rconpool.Scraper
// depend on, keeping both of those packages free of any persistence or
// cache import (the same port-and-adapter shape internal/notify uses
// for its Executor dependency on internal/rconpool itself).
package rconadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/cache"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/cryptoutil"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/rconpool"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

// Lookup satisfies rconpool.ServerLookup and rconpool.EligibilityLookup
// over a repository.Repository and a cache.ActivityTracker.
type Lookup struct {
	repo     repository.Repository
	sealer   *cryptoutil.Sealer
	activity *cache.ActivityTracker
}

// New builds a Lookup. sealer may be nil, in which case a server's
// stored RCON password is treated as already cleartext (only used by
// tests that never provision real credentials).
func New(repo repository.Repository, sealer *cryptoutil.Sealer, activity *cache.ActivityTracker) *Lookup {
	return &Lookup{repo: repo, sealer: sealer, activity: activity}
}

// ServerDialInfo implements rconpool.ServerLookup.
func (l *Lookup) ServerDialInfo(ctx context.Context, id model.ServerID) (rconpool.DialInfo, error) {
	row, ok, err := l.repo.GetServerByID(ctx, id)
	if err != nil {
		return rconpool.DialInfo{}, fmt.Errorf("rconadapter: loading server %d: %w", id, err)
	}
	if !ok {
		return rconpool.DialInfo{}, fmt.Errorf("rconadapter: unknown server %d", id)
	}

	info := rconpool.DialInfo{
		Address:    row.Address,
		Port:       row.Port,
		Engine:     row.Engine,
		IgnoreBots: row.IgnoreBots,
	}

	if row.RconPasswordEnc == "" {
		return info, nil
	}

	password := row.RconPasswordEnc
	if l.sealer != nil {
		password, err = l.sealer.Open(row.RconPasswordEnc)
		if err != nil {
			return rconpool.DialInfo{}, fmt.Errorf("rconadapter: unsealing rcon password for server %d: %w", id, err)
		}
	}
	info.Password = password
	info.HasCredentials = true
	return info, nil
}

// ActiveMap implements rconpool.ServerMapLookup: it reports the map
// the server row last recorded, for the status scraper to diff
// against what the live "status" response just reported.
func (l *Lookup) ActiveMap(ctx context.Context, id model.ServerID) (string, error) {
	row, ok, err := l.repo.GetServerByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("rconadapter: loading server %d: %w", id, err)
	}
	if !ok {
		return "", fmt.Errorf("rconadapter: unknown server %d", id)
	}
	return row.ActiveMap, nil
}

// EligibleServers implements rconpool.EligibilityLookup: a server is
// eligible for a status scrape when it carries RCON credentials and
// the ActivityTracker reports it active, i.e. it has been touched (by
// the ingest listener, on every accepted event) within the tracker's
// own fixed TTL of 10 minutes. The activeWindow argument is not
// consulted.
func (l *Lookup) EligibleServers(ctx context.Context, activeWindow time.Duration) ([]model.ServerID, error) {
	rows, err := l.repo.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("rconadapter: listing servers: %w", err)
	}

	var ids []model.ServerID
	for _, row := range rows {
		if row.RconPasswordEnc == "" {
			continue
		}
		active, err := l.activity.IsActive(ctx, row.ID)
		if err != nil || !active {
			continue
		}
		ids = append(ids, row.ID)
	}
	return ids, nil
}
