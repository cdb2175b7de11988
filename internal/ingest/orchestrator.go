package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

// Orchestrator resolves the first sighting of a newly-authenticated
// (address, port) pair to a server row, collapsing concurrent callers
// for the same pair onto one repository.FindOrCreateServer call (§4.5:
// "de-duplicates concurrent creations via a pending-promise map keyed
// by address:port"). golang.org/x/sync/singleflight is exactly that
// pending-promise map, so it is used directly rather than
// reimplemented; repository.FindOrCreateServer's own
// insert-then-re-read already covers the cross-process unique
// constraint race this does not.
type Orchestrator struct {
	repo  repository.Repository
	group singleflight.Group
}

// NewOrchestrator builds an Orchestrator over repo.
func NewOrchestrator(repo repository.Repository) *Orchestrator {
	return &Orchestrator{repo: repo}
}

// FindOrCreateServer resolves (address, port) to a server row,
// registering it under gameCode on first sighting.
func (o *Orchestrator) FindOrCreateServer(ctx context.Context, address string, port int, gameCode string) (repository.ServerRow, error) {
	key := fmt.Sprintf("%s:%d", address, port)
	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		return o.repo.FindOrCreateServer(ctx, address, port, gameCode)
	})
	if err != nil {
		return repository.ServerRow{}, err
	}
	return v.(repository.ServerRow), nil
}
