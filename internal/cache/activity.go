package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// activityTTL bounds how long a server is considered "active" without
// a fresh touch; long enough to survive a brief quiet spell between
// rounds, short enough that a server that vanished stops showing up
// as active within a few minutes.
const activityTTL = 10 * time.Minute

// ActivityTracker records per-server last-seen timestamps in Valkey so
// any daemon process (not just the one holding the RCON connection)
// can answer "is this server active" without a live pool lookup.
//
// Grounded on the same teacher pattern as LookupRepository
// (namespaced keys, Set with TTL, tolerant Get), applied here to
// internal/rconpool's "per-server active window" concern (§4.3) that
// a single in-process map cannot serve across daemon instances.
type ActivityTracker struct {
	cache Store
}

// NewActivityTracker builds a tracker backed by client.
func NewActivityTracker(client Store) *ActivityTracker {
	return &ActivityTracker{cache: client}
}

func activityKey(serverID model.ServerID) string {
	return fmt.Sprintf("hlstatsd:cache:active:%d", serverID)
}

// Touch marks serverID as active as of now.
func (a *ActivityTracker) Touch(ctx context.Context, serverID model.ServerID) error {
	return a.cache.Set(ctx, activityKey(serverID), strconv.FormatInt(time.Now().Unix(), 10), activityTTL)
}

// IsActive reports whether serverID has been touched within activityTTL.
func (a *ActivityTracker) IsActive(ctx context.Context, serverID model.ServerID) (bool, error) {
	_, ok, err := a.cache.Get(ctx, activityKey(serverID))
	if err != nil {
		return false, err
	}
	return ok, nil
}
