package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

// DefaultTTL is how long a weapon/action lookup is cached before the
// next request falls through to Postgres again. Weapon modifiers and
// action definitions are admin-edited rarely, so a TTL this long keeps
// the per-event hot path off the database without risking long-stale
// values after an edit.
const DefaultTTL = 5 * time.Minute

// Store is the subset of Client's surface the cache package depends
// on, narrowed per the repository port pattern so tests substitute an
// in-memory fake instead of a live Valkey instance. *Client satisfies
// this.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// LookupRepository decorates a repository.Repository, fronting
// FindAction and FindWeapon with a Valkey cache (§4.7: both are
// consulted on every kill/action event, making them the pipeline's
// hottest read path). All other methods pass straight through.
//
// Grounded on the teacher's internal/valkey usage in
// internal/logwatcher_manager (marshal-to-JSON, Set with a TTL, Get
// falling through to source on miss); generalized from a player-data
// session store to a read-through cache in front of the Repository
// port.
type LookupRepository struct {
	repository.Repository
	cache Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewLookupRepository wraps repo with a read-through cache over
// client.
func NewLookupRepository(repo repository.Repository, client Store, ttl time.Duration, log zerolog.Logger) *LookupRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LookupRepository{Repository: repo, cache: client, ttl: ttl, log: log.With().Str("component", "cache").Logger()}
}

func actionKey(game, code string, team model.Team) string {
	return fmt.Sprintf("hlstatsd:cache:action:%s:%s:%s", game, code, team)
}

func weaponKey(game, code string) string {
	return fmt.Sprintf("hlstatsd:cache:weapon:%s:%s", game, code)
}

// cachedAction mirrors repository.ActionRow for JSON round-tripping;
// Found distinguishes a cached miss from a cached hit of a zero-value row.
type cachedAction struct {
	Row   repository.ActionRow
	Found bool
}

type cachedWeapon struct {
	Row   repository.WeaponRow
	Found bool
}

// FindAction consults the cache before falling through to the
// decorated repository; a cache miss and a cached "row not found"
// result are both stored, so a genuinely absent action doesn't repeat
// a database round trip on every kill either.
func (l *LookupRepository) FindAction(ctx context.Context, game, code string, team model.Team) (repository.ActionRow, bool, error) {
	key := actionKey(game, code, team)

	if raw, ok, err := l.cache.Get(ctx, key); err == nil && ok {
		var cached cachedAction
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached.Row, cached.Found, nil
		}
	}

	row, found, err := l.Repository.FindAction(ctx, game, code, team)
	if err != nil {
		return row, found, err
	}

	if data, err := json.Marshal(cachedAction{Row: row, Found: found}); err == nil {
		if err := l.cache.Set(ctx, key, string(data), l.ttl); err != nil {
			l.log.Debug().Err(err).Str("key", key).Msg("caching action lookup failed")
		}
	}
	return row, found, nil
}

// FindWeapon consults the cache before falling through, same shape as
// FindAction.
func (l *LookupRepository) FindWeapon(ctx context.Context, game, code string) (repository.WeaponRow, bool, error) {
	key := weaponKey(game, code)

	if raw, ok, err := l.cache.Get(ctx, key); err == nil && ok {
		var cached cachedWeapon
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached.Row, cached.Found, nil
		}
	}

	row, found, err := l.Repository.FindWeapon(ctx, game, code)
	if err != nil {
		return row, found, err
	}

	if data, err := json.Marshal(cachedWeapon{Row: row, Found: found}); err == nil {
		if err := l.cache.Set(ctx, key, string(data), l.ttl); err != nil {
			l.log.Debug().Err(err).Str("key", key).Msg("caching weapon lookup failed")
		}
	}
	return row, found, nil
}

// Transaction re-wraps the inner repository.Repository the decorated
// Transaction hands to fn, so FindAction/FindWeapon calls made from
// inside the handler chain's persist step (which only ever sees the
// transaction-bound repository, never the outer l) still go through
// the cache. Without this override the decorator would only ever
// apply to calls made outside a transaction, which is none of them.
func (l *LookupRepository) Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository) error) error {
	return l.Repository.Transaction(ctx, func(ctx context.Context, inner repository.Repository) error {
		return fn(ctx, &LookupRepository{Repository: inner, cache: l.cache, ttl: l.ttl, log: l.log})
	})
}

// UpsertWeaponStats writes through to the decorated repository and
// invalidates the cached row so the next FindWeapon call observes the
// new kill/headshot tallies instead of a stale cached Modifier (which
// does not change, but Kills/Headshots do and §4.7's reporting reads
// through this same path).
func (l *LookupRepository) UpsertWeaponStats(ctx context.Context, game, code string, kills, headshots int) error {
	if err := l.Repository.UpsertWeaponStats(ctx, game, code, kills, headshots); err != nil {
		return err
	}
	if err := l.cache.Del(ctx, weaponKey(game, code)); err != nil {
		l.log.Debug().Err(err).Str("game", game).Str("code", code).Msg("invalidating weapon cache failed")
	}
	return nil
}
